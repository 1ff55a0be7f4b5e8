// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or postgres), migrations
//	├── users/           # Accounts, roles and membership numbers
//	├── books/           # Catalogue and copy accounting
//	├── memberships/     # Membership applications
//	├── reservations/    # Reservations and loans
//	├── events/          # Library events
//	├── gallery/         # Gallery images
//	├── chat/            # Direct messages
//	├── notifications/   # In-app notifications
//	├── fees/            # Fee transactions
//	├── broadcasts/      # Email broadcasts
//	└── audit/           # Audit trail
//
// Each sub-package provides a Repository wrapping *gorm.DB:
//
//	db, err := database.NewDatabase(cfg.Database)
//	booksRepo := books.NewRepository(db.DB)
//	book, err := booksRepo.GetByID(123)
//
// Repositories map gorm.ErrRecordNotFound to their own ErrNotFound so that
// callers never depend on gorm errors. Inside a transaction, build the
// repository from the transaction handle:
//
//	db.DB.Transaction(func(tx *gorm.DB) error {
//		return books.NewRepository(tx).ReserveCopy(bookID)
//	})
package database
