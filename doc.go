// Package biblioteca provides the core domain model and components for a
// library catalog: book inventory, loan circulation, favorites, and search.
//
// The package defines the storage contracts (see BookReader, BookWriter,
// LoanReader, FavoriteStore, TransactionalStore) that concrete engines
// implement, and the components that consume them:
//
//   - Registry: registers books from an external bibliographic lookup and
//     owns the descriptive-merge and stock policies
//   - Coordinator: executes loan creation and return as a single serializable
//     transaction over the book counters and the loan record
//   - Ledger: read-only queries over loan records
//   - Favorites: per-user favorite sets with batched book resolution
//   - Search: substring title/ISBN search with an availability filter
//
// Storage engines live in subpackages (postgresengine, sqliteengine) and an
// in-memory engine for tests ships in testutil/memstore. All components take
// their dependencies through constructors; there is no package-level state.
//
// Common usage pattern:
//
//	store, err := postgresengine.NewStoreFromPGXPool(pool)
//	if err != nil {
//		// handle error
//	}
//
//	coordinator, err := biblioteca.NewCoordinator(store)
//	if err != nil {
//		// handle error
//	}
//
//	loanID, err := coordinator.CreateLoan(ctx, biblioteca.CreateLoan{
//		Admin:    admin,
//		Borrower: biblioteca.Borrower{Name: "Maria Silva", NationalID: cpf},
//		BookID:   book.ID,
//		DueAt:    time.Now().AddDate(0, 0, 14),
//	})
//	if err != nil {
//		// handle error
//	}
//
//	err = coordinator.ReturnBook(ctx, loanID)
package biblioteca
