package config

import (
	"flag"
	"os"
	"time"

	"github.com/soclocker/soclocker/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-t int      challenge validity, seconds
//	-f string   static files directory
//	-m string   keystore backend ("file" or "s3")
//	-k string   keystore path / object key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-f", "-m", "-k", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	challengeValidity := fs.Int("t", int(config.ChallengeValidity.Seconds()), "challenge validity (in seconds)")

	fs.StringVar(&config.StaticDir, "f", config.StaticDir, "static files directory")
	fs.StringVar(&config.KeystoreBackend, "m", config.KeystoreBackend, "keystore backend (file|s3)")
	fs.StringVar(&config.KeystorePath, "k", config.KeystorePath, "keystore path or object key")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ChallengeValidity = time.Duration(*challengeValidity) * time.Second
}
