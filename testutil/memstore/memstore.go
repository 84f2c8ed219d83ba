package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ramonpiresone/biblioteca"
)

var errInjectedConflict = errors.New("injected serialization failure")

type favoriteKey struct {
	userID string
	bookID biblioteca.BookID
}

// state is the complete record set. Transactions stage their writes on a deep
// copy and swap it in on commit.
type state struct {
	books     map[biblioteca.BookID]biblioteca.Book
	bookOrder []biblioteca.BookID
	loans     map[biblioteca.LoanID]biblioteca.Loan
	loanOrder []biblioteca.LoanID
	favorites map[favoriteKey]biblioteca.Favorite
	favOrder  []favoriteKey
}

// Store is the in-memory engine.
type Store struct {
	mu               sync.Mutex
	current          *state
	now              func() time.Time
	conflictsToFail  int
	transactionCount int
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	store := &Store{
		current: newState(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func newState() *state {
	return &state{
		books:     make(map[biblioteca.BookID]biblioteca.Book),
		loans:     make(map[biblioteca.LoanID]biblioteca.Loan),
		favorites: make(map[favoriteKey]biblioteca.Favorite),
	}
}

// FailConflicts makes the next n transactions fail at commit with an error
// matching biblioteca.ErrConflict, discarding their staged writes.
func (s *Store) FailConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conflictsToFail = n
}

// TransactionCount reports how many transactions have been started, useful to
// assert that validation failures never reach storage.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transactionCount
}

// RunInTransaction implements biblioteca.TransactionalStore. The store mutex
// is held for the whole transaction, so concurrent transactions serialize.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx biblioteca.InventoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactionCount++

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &transaction{staged: s.current.clone(), now: s.now}

	if err := fn(tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if s.conflictsToFail > 0 {
		s.conflictsToFail--

		return errors.Join(biblioteca.ErrConflict, errInjectedConflict)
	}

	s.current = tx.staged

	return nil
}

// GetBook implements biblioteca.BookReader.
func (s *Store) GetBook(ctx context.Context, id biblioteca.BookID) (biblioteca.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.getBook(id)
}

// GetBooksByIDs implements biblioteca.BookReader.
func (s *Store) GetBooksByIDs(ctx context.Context, ids []biblioteca.BookID) ([]biblioteca.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.getBooksByIDs(ids)
}

// ListBooks implements biblioteca.BookReader.
func (s *Store) ListBooks(ctx context.Context, limit int) ([]biblioteca.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.listBooks(limit), nil
}

// PutBook implements biblioteca.BookWriter.
func (s *Store) PutBook(ctx context.Context, b biblioteca.Book) (biblioteca.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.putBook(b, s.now()), nil
}

// TouchBook implements biblioteca.BookWriter.
func (s *Store) TouchBook(ctx context.Context, id biblioteca.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.touchBook(id, s.now())
}

// GetLoan implements biblioteca.LoanReader.
func (s *Store) GetLoan(ctx context.Context, id biblioteca.LoanID) (biblioteca.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.getLoan(id)
}

// ListLoans implements biblioteca.LoanReader.
func (s *Store) ListLoans(ctx context.Context) ([]biblioteca.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.listLoans(func(biblioteca.Loan) bool { return true }), nil
}

// ListLoansByAdmin implements biblioteca.LoanReader.
func (s *Store) ListLoansByAdmin(ctx context.Context, adminID string) ([]biblioteca.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.listLoans(func(l biblioteca.Loan) bool { return l.Admin.ID == adminID }), nil
}

// PutFavorite implements biblioteca.FavoriteStore.
func (s *Store) PutFavorite(ctx context.Context, f biblioteca.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.putFavorite(f, s.now())

	return nil
}

// DeleteFavorite implements biblioteca.FavoriteStore.
func (s *Store) DeleteFavorite(ctx context.Context, userID string, id biblioteca.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.deleteFavorite(favoriteKey{userID: userID, bookID: id})

	return nil
}

// ListFavorites implements biblioteca.FavoriteStore.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]biblioteca.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.listFavorites(userID), nil
}

// transaction operates on the staged state copy while the store mutex is held.
type transaction struct {
	staged *state
	now    func() time.Time
}

func (t *transaction) GetBook(ctx context.Context, id biblioteca.BookID) (biblioteca.Book, error) {
	return t.staged.getBook(id)
}

func (t *transaction) PutBook(ctx context.Context, b biblioteca.Book) (biblioteca.Book, error) {
	return t.staged.putBook(b, t.now()), nil
}

func (t *transaction) UpdateAvailableQuantity(ctx context.Context, id biblioteca.BookID, available int) error {
	book, found := t.staged.books[id]
	if !found {
		return biblioteca.NewNotFoundError("book", id.String())
	}

	book.AvailableQuantity = &available
	t.staged.books[id] = book

	return nil
}

func (t *transaction) TouchBook(ctx context.Context, id biblioteca.BookID) error {
	return t.staged.touchBook(id, t.now())
}

func (t *transaction) GetLoan(ctx context.Context, id biblioteca.LoanID) (biblioteca.Loan, error) {
	return t.staged.getLoan(id)
}

func (t *transaction) CreateLoan(ctx context.Context, l biblioteca.Loan) (biblioteca.LoanID, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	now := t.now()

	l.ID = biblioteca.LoanID(uid.String())
	l.LoanedAt = now
	l.CreatedAt = now

	t.staged.loans[l.ID] = cloneLoan(l)
	t.staged.loanOrder = append(t.staged.loanOrder, l.ID)

	return l.ID, nil
}

func (t *transaction) MarkLoanReturned(ctx context.Context, id biblioteca.LoanID) error {
	loan, found := t.staged.loans[id]
	if !found {
		return biblioteca.NewNotFoundError("loan", id.String())
	}

	returnedAt := t.now()

	loan.Status = biblioteca.LoanReturned
	loan.ReturnedAt = &returnedAt
	t.staged.loans[id] = loan

	return nil
}

func (st *state) getBook(id biblioteca.BookID) (biblioteca.Book, error) {
	book, found := st.books[id]
	if !found {
		return biblioteca.Book{}, biblioteca.NewNotFoundError("book", id.String())
	}

	return cloneBook(book), nil
}

func (st *state) getBooksByIDs(ids []biblioteca.BookID) ([]biblioteca.Book, error) {
	if len(ids) > biblioteca.MaxBatchGetKeys {
		return nil, biblioteca.NewValidationError("ids", "key count exceeds the multi-get limit")
	}

	books := make([]biblioteca.Book, 0, len(ids))
	seen := make(map[biblioteca.BookID]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}

		seen[id] = true

		if book, found := st.books[id]; found {
			books = append(books, cloneBook(book))
		}
	}

	return books, nil
}

func (st *state) listBooks(limit int) []biblioteca.Book {
	books := make([]biblioteca.Book, 0, len(st.bookOrder))
	for _, id := range st.bookOrder {
		books = append(books, cloneBook(st.books[id]))
	}

	// bookOrder is insertion order, so a stable sort keeps it as tiebreaker.
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].Title < books[j].Title
	})

	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}

	return books
}

func (st *state) putBook(b biblioteca.Book, now time.Time) biblioteca.Book {
	stored, exists := st.books[b.ID]

	if exists {
		b.CreatedAt = stored.CreatedAt
	} else {
		b.CreatedAt = now
		st.bookOrder = append(st.bookOrder, b.ID)
	}

	b.LastAccessedAt = now
	st.books[b.ID] = cloneBook(b)

	return cloneBook(b)
}

func (st *state) touchBook(id biblioteca.BookID, now time.Time) error {
	book, found := st.books[id]
	if !found {
		return biblioteca.NewNotFoundError("book", id.String())
	}

	book.LastAccessedAt = now
	st.books[id] = book

	return nil
}

func (st *state) getLoan(id biblioteca.LoanID) (biblioteca.Loan, error) {
	loan, found := st.loans[id]
	if !found {
		return biblioteca.Loan{}, biblioteca.NewNotFoundError("loan", id.String())
	}

	return cloneLoan(loan), nil
}

func (st *state) listLoans(include func(biblioteca.Loan) bool) []biblioteca.Loan {
	loans := make([]biblioteca.Loan, 0, len(st.loanOrder))
	for _, id := range st.loanOrder {
		if loan := st.loans[id]; include(loan) {
			loans = append(loans, cloneLoan(loan))
		}
	}

	sort.SliceStable(loans, func(i, j int) bool {
		if loans[i].Status != loans[j].Status {
			return loans[i].Status == biblioteca.LoanActive
		}

		return loans[i].CreatedAt.After(loans[j].CreatedAt)
	})

	return loans
}

func (st *state) putFavorite(f biblioteca.Favorite, now time.Time) {
	key := favoriteKey{userID: f.UserID, bookID: f.BookID}

	if _, exists := st.favorites[key]; !exists {
		st.favOrder = append(st.favOrder, key)
	}

	f.FavoritedAt = now
	st.favorites[key] = f
}

func (st *state) deleteFavorite(key favoriteKey) {
	if _, exists := st.favorites[key]; !exists {
		return
	}

	delete(st.favorites, key)

	for i, candidate := range st.favOrder {
		if candidate == key {
			st.favOrder = append(st.favOrder[:i], st.favOrder[i+1:]...)

			break
		}
	}
}

func (st *state) listFavorites(userID string) []biblioteca.Favorite {
	favorites := make([]biblioteca.Favorite, 0)

	for _, key := range st.favOrder {
		if key.userID == userID {
			favorites = append(favorites, st.favorites[key])
		}
	}

	// favOrder is insertion order; most recently favorited first, with a
	// stable sort so same-timestamp entries keep insertion order.
	sort.SliceStable(favorites, func(i, j int) bool {
		return favorites[i].FavoritedAt.After(favorites[j].FavoritedAt)
	})

	return favorites
}

func (st *state) clone() *state {
	cloned := &state{
		books:     make(map[biblioteca.BookID]biblioteca.Book, len(st.books)),
		bookOrder: append([]biblioteca.BookID(nil), st.bookOrder...),
		loans:     make(map[biblioteca.LoanID]biblioteca.Loan, len(st.loans)),
		loanOrder: append([]biblioteca.LoanID(nil), st.loanOrder...),
		favorites: make(map[favoriteKey]biblioteca.Favorite, len(st.favorites)),
		favOrder:  append([]favoriteKey(nil), st.favOrder...),
	}

	for id, book := range st.books {
		cloned.books[id] = cloneBook(book)
	}

	for id, loan := range st.loans {
		cloned.loans[id] = cloneLoan(loan)
	}

	for key, favorite := range st.favorites {
		cloned.favorites[key] = favorite
	}

	return cloned
}

// cloneBook copies the slices and pointers so callers can never alias the
// stored record.
func cloneBook(b biblioteca.Book) biblioteca.Book {
	b.Authors = append([]string(nil), b.Authors...)
	b.ISBNs = append([]string(nil), b.ISBNs...)

	if b.FirstPublishYear != nil {
		year := *b.FirstPublishYear
		b.FirstPublishYear = &year
	}

	if b.Quantity != nil {
		quantity := *b.Quantity
		b.Quantity = &quantity
	}

	if b.AvailableQuantity != nil {
		available := *b.AvailableQuantity
		b.AvailableQuantity = &available
	}

	return b
}

func cloneLoan(l biblioteca.Loan) biblioteca.Loan {
	if l.ReturnedAt != nil {
		returnedAt := *l.ReturnedAt
		l.ReturnedAt = &returnedAt
	}

	return l
}
