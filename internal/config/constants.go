package config

// Default paths for databases and files
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./library.db"

	// DefaultStorageDir is where uploaded PDFs and gallery images are kept
	DefaultStorageDir = "./data/files"

	// DefaultLogFile is the rotating log file written next to console output
	DefaultLogFile = "./logs/library.log"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type MailProvider string

const (
	MailProviderSMTP   MailProvider = "smtp"
	MailProviderResend MailProvider = "resend"
	MailProviderNone   MailProvider = "none"
)
