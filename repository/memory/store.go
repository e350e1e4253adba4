// Package memory provides in-process implementations of the repository interfaces.
// A Store keeps every table in maps and gives transactions snapshot/restore semantics,
// which is enough to exercise business flows without a database.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/apaysummit/summit-registration/models"
	"github.com/apaysummit/summit-registration/pricing"
	"github.com/apaysummit/summit-registration/repository"
)

// ErrUniqueViolation is returned when a write would break a unique constraint
var ErrUniqueViolation = errors.New("memory: unique constraint violated")

type txKey struct{}

type link struct {
	invoiceID     uint
	participantID uint
}

type dataset struct {
	seq          uint
	accounts     map[uint]models.Account
	profiles     map[uint]models.Profile
	participants map[uint]models.Participant
	invoices     map[uint]models.Invoice
	items        map[uint]models.InvoiceItem
	links        map[link]struct{}
}

func newDataset() *dataset {
	return &dataset{
		accounts:     map[uint]models.Account{},
		profiles:     map[uint]models.Profile{},
		participants: map[uint]models.Participant{},
		invoices:     map[uint]models.Invoice{},
		items:        map[uint]models.InvoiceItem{},
		links:        map[link]struct{}{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		seq:          d.seq,
		accounts:     maps.Clone(d.accounts),
		profiles:     maps.Clone(d.profiles),
		participants: maps.Clone(d.participants),
		invoices:     maps.Clone(d.invoices),
		items:        maps.Clone(d.items),
		links:        maps.Clone(d.links),
	}
}

func (d *dataset) nextID() uint {
	d.seq++
	return d.seq
}

// Store is an in-memory database. Transactions and standalone operations are serialized.
type Store struct {
	txMu sync.Mutex
	data *dataset

	failMu   sync.Mutex
	failures map[string]error
}

// New creates an empty store
func New() *Store {
	return &Store{
		data:     newDataset(),
		failures: map[string]error{},
	}
}

// Accounts returns the account repository view of the store
func (s *Store) Accounts() repository.AccountRepository { return &accountRepo{s: s} }

// Profiles returns the profile repository view of the store
func (s *Store) Profiles() repository.ProfileRepository { return &profileRepo{s: s} }

// Participants returns the participant repository view of the store
func (s *Store) Participants() repository.ParticipantRepository { return &participantRepo{s: s} }

// Invoices returns the invoice repository view of the store
func (s *Store) Invoices() repository.InvoiceRepository { return &invoiceRepo{s: s} }

// WithTransaction runs fn atomically. Any error or panic restores the state seen before fn.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			s.data = snapshot
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
	}
	return err
}

// FailNext makes the next call of op fail with err. Ops are named "<table>.<Method>", e.g. "invoices.ReplaceItems".
func (s *Store) FailNext(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// op enters the store for one operation and reports an injected failure, if any
func (s *Store) op(ctx context.Context, name string) (func(), error) {
	release := func() {}
	if !s.inTx(ctx) {
		s.txMu.Lock()
		release = s.txMu.Unlock
	}
	if err := s.failure(name); err != nil {
		release()
		return func() {}, err
	}
	return release, nil
}

// atomically restores the dataset when fn fails part way through a multi-row write
func (s *Store) atomically(fn func() error) error {
	snapshot := s.data.clone()
	if err := fn(); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return []*T{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func now() time.Time {
	return time.Now().UTC()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// accountRepo implements repository.AccountRepository
type accountRepo struct {
	s *Store
}

func (r *accountRepo) ByID(ctx context.Context, id uint) (*models.Account, error) {
	release, err := r.s.op(ctx, "accounts.ByID")
	if err != nil {
		return nil, err
	}
	defer release()

	a, ok := r.s.data.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *accountRepo) LockByID(ctx context.Context, id uint) (*models.Account, error) {
	return r.ByID(ctx, id)
}

func (r *accountRepo) ByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.first(ctx, models.AccountFilter{Username: &username})
}

func (r *accountRepo) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	return r.first(ctx, models.AccountFilter{Email: &email})
}

func (r *accountRepo) first(ctx context.Context, filter models.AccountFilter) (*models.Account, error) {
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func matchAccount(a models.Account, f models.AccountFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID:
		return false
	case f.Username != nil && a.Username != *f.Username:
		return false
	case f.Email != nil && !strings.EqualFold(a.Email, *f.Email):
		return false
	case f.IsStaff != nil && a.IsStaff != *f.IsStaff:
		return false
	case f.IsActive != nil && (a.IsActive == nil || *a.IsActive != *f.IsActive):
		return false
	}
	return true
}

func (r *accountRepo) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	release, err := r.s.op(ctx, "accounts.ByFilter")
	if err != nil {
		return nil, err
	}
	defer release()

	rows := []*models.Account{}
	for _, a := range r.s.data.accounts {
		if matchAccount(a, filter) {
			rows = append(rows, &a)
		}
	}

	switch orderBy {
	case "", "accounts.id DESC":
		slices.SortFunc(rows, func(a, b *models.Account) int { return cmp.Compare(b.ID, a.ID) })
	case repository.AccountOrderByUsername:
		slices.SortFunc(rows, func(a, b *models.Account) int { return cmp.Compare(a.Username, b.Username) })
	default:
		return nil, fmt.Errorf("memory: unsupported account order %q", orderBy)
	}
	return page(rows, limit, offset), nil
}

func (r *accountRepo) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *accountRepo) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *accountRepo) checkUnique(a *models.Account) error {
	for id, other := range r.s.data.accounts {
		if id == a.ID {
			continue
		}
		if other.Username == a.Username {
			return fmt.Errorf("%w: accounts.username %q", ErrUniqueViolation, a.Username)
		}
		if strings.EqualFold(other.Email, a.Email) {
			return fmt.Errorf("%w: accounts.email %q", ErrUniqueViolation, a.Email)
		}
	}
	return nil
}

func (r *accountRepo) insert(a *models.Account) error {
	if err := r.checkUnique(a); err != nil {
		return err
	}
	a.ID = r.s.data.nextID()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	a.UpdatedAt = a.CreatedAt
	if a.IsActive == nil {
		active := true
		a.IsActive = &active
	}
	stored := *a
	stored.Profile = nil
	r.s.data.accounts[a.ID] = stored
	return nil
}

func (r *accountRepo) Save(ctx context.Context, a *models.Account) error {
	release, err := r.s.op(ctx, "accounts.Save")
	if err != nil {
		return err
	}
	defer release()
	return r.insert(a)
}

func (r *accountRepo) SaveBatch(ctx context.Context, accounts []*models.Account) error {
	release, err := r.s.op(ctx, "accounts.SaveBatch")
	if err != nil {
		return err
	}
	defer release()

	return r.s.atomically(func() error {
		for _, a := range accounts {
			if err := r.insert(a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *accountRepo) Update(ctx context.Context, a *models.Account) error {
	release, err := r.s.op(ctx, "accounts.Update")
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.data.accounts[a.ID]; !ok {
		return fmt.Errorf("memory: account %d not found", a.ID)
	}
	if err := r.checkUnique(a); err != nil {
		return err
	}
	a.UpdatedAt = now()
	stored := *a
	stored.Profile = nil
	r.s.data.accounts[a.ID] = stored
	return nil
}

func (r *accountRepo) UpdateLastLogin(ctx context.Context, id uint, at time.Time) error {
	release, err := r.s.op(ctx, "accounts.UpdateLastLogin")
	if err != nil {
		return err
	}
	defer release()

	a, ok := r.s.data.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	a.LastLoginAt = &at
	a.UpdatedAt = at
	r.s.data.accounts[id] = a
	return nil
}

// profileRepo implements repository.ProfileRepository
type profileRepo struct {
	s *Store
}

func (r *profileRepo) ByID(ctx context.Context, id uint) (*models.Profile, error) {
	release, err := r.s.op(ctx, "profiles.ByID")
	if err != nil {
		return nil, err
	}
	defer release()

	p, ok := r.s.data.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *profileRepo) ByAccountID(ctx context.Context, accountID uint) (*models.Profile, error) {
	return r.first(ctx, models.ProfileFilter{AccountID: &accountID})
}

func (r *profileRepo) ByVerificationToken(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, nil
	}
	return r.first(ctx, models.ProfileFilter{VerificationToken: &token})
}

func (r *profileRepo) first(ctx context.Context, filter models.ProfileFilter) (*models.Profile, error) {
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func matchProfile(p models.Profile, f models.ProfileFilter) bool {
	switch {
	case f.AccountID != nil && p.AccountID != *f.AccountID:
		return false
	case f.VerificationToken != nil && (p.VerificationToken == nil || *p.VerificationToken != *f.VerificationToken):
		return false
	case f.EmailVerified != nil && p.EmailVerified != *f.EmailVerified:
		return false
	}
	return true
}

func (r *profileRepo) ByFilter(ctx context.Context, filter models.ProfileFilter, orderBy string, limit, offset int) ([]*models.Profile, error) {
	release, err := r.s.op(ctx, "profiles.ByFilter")
	if err != nil {
		return nil, err
	}
	defer release()

	if orderBy != "" && orderBy != "id DESC" {
		return nil, fmt.Errorf("memory: unsupported profile order %q", orderBy)
	}

	rows := []*models.Profile{}
	for _, p := range r.s.data.profiles {
		if matchProfile(p, filter) {
			rows = append(rows, &p)
		}
	}
	slices.SortFunc(rows, func(a, b *models.Profile) int { return cmp.Compare(b.ID, a.ID) })
	return page(rows, limit, offset), nil
}

func (r *profileRepo) Count(ctx context.Context, filter models.ProfileFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *profileRepo) Exists(ctx context.Context, filter models.ProfileFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *profileRepo) insert(p *models.Profile) error {
	for _, other := range r.s.data.profiles {
		if other.AccountID == p.AccountID {
			return fmt.Errorf("%w: profiles.account_id %d", ErrUniqueViolation, p.AccountID)
		}
	}
	p.ID = r.s.data.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	p.UpdatedAt = p.CreatedAt
	r.s.data.profiles[p.ID] = *p
	return nil
}

func (r *profileRepo) Save(ctx context.Context, p *models.Profile) error {
	release, err := r.s.op(ctx, "profiles.Save")
	if err != nil {
		return err
	}
	defer release()
	return r.insert(p)
}

func (r *profileRepo) SaveBatch(ctx context.Context, profiles []*models.Profile) error {
	release, err := r.s.op(ctx, "profiles.SaveBatch")
	if err != nil {
		return err
	}
	defer release()

	return r.s.atomically(func() error {
		for _, p := range profiles {
			if err := r.insert(p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *profileRepo) Update(ctx context.Context, p *models.Profile) error {
	release, err := r.s.op(ctx, "profiles.Update")
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.data.profiles[p.ID]; !ok {
		return fmt.Errorf("memory: profile %d not found", p.ID)
	}
	p.UpdatedAt = now()
	r.s.data.profiles[p.ID] = *p
	return nil
}

// participantRepo implements repository.ParticipantRepository
type participantRepo struct {
	s *Store
}

func (r *participantRepo) ByID(ctx context.Context, id uint) (*models.Participant, error) {
	release, err := r.s.op(ctx, "participants.ByID")
	if err != nil {
		return nil, err
	}
	defer release()

	p, ok := r.s.data.participants[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *participantRepo) match(p models.Participant, f models.ParticipantFilter) bool {
	switch {
	case f.ID != nil && p.ID != *f.ID:
		return false
	case f.AccountID != nil && p.AccountID != *f.AccountID:
		return false
	case f.Email != nil && !strings.EqualFold(p.Email, *f.Email):
		return false
	}
	if f.InvoiceID != nil {
		if _, ok := r.s.data.links[link{invoiceID: *f.InvoiceID, participantID: p.ID}]; !ok {
			return false
		}
	}
	return true
}

func (r *participantRepo) ByFilter(ctx context.Context, filter models.ParticipantFilter, orderBy string, limit, offset int) ([]*models.Participant, error) {
	release, err := r.s.op(ctx, "participants.ByFilter")
	if err != nil {
		return nil, err
	}
	defer release()

	rows := []*models.Participant{}
	for _, p := range r.s.data.participants {
		if r.match(p, filter) {
			rows = append(rows, &p)
		}
	}

	switch orderBy {
	case "", repository.ParticipantOrderNewest:
		slices.SortFunc(rows, func(a, b *models.Participant) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
	case repository.ParticipantOrderAdded:
		slices.SortFunc(rows, func(a, b *models.Participant) int { return cmp.Compare(a.ID, b.ID) })
	default:
		return nil, fmt.Errorf("memory: unsupported participant order %q", orderBy)
	}
	return page(rows, limit, offset), nil
}

func (r *participantRepo) Count(ctx context.Context, filter models.ParticipantFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *participantRepo) Exists(ctx context.Context, filter models.ParticipantFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *participantRepo) insert(p *models.Participant) {
	p.ID = r.s.data.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	stored := *p
	stored.Account = nil
	r.s.data.participants[p.ID] = stored
}

func (r *participantRepo) Save(ctx context.Context, p *models.Participant) error {
	release, err := r.s.op(ctx, "participants.Save")
	if err != nil {
		return err
	}
	defer release()
	r.insert(p)
	return nil
}

func (r *participantRepo) SaveBatch(ctx context.Context, participants []*models.Participant) error {
	release, err := r.s.op(ctx, "participants.SaveBatch")
	if err != nil {
		return err
	}
	defer release()
	for _, p := range participants {
		r.insert(p)
	}
	return nil
}

// invoiceRepo implements repository.InvoiceRepository
type invoiceRepo struct {
	s *Store
}

func (r *invoiceRepo) ByID(ctx context.Context, id uint) (*models.Invoice, error) {
	release, err := r.s.op(ctx, "invoices.ByID")
	if err != nil {
		return nil, err
	}
	defer release()

	inv, ok := r.s.data.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r *invoiceRepo) LockByID(ctx context.Context, id uint) (*models.Invoice, error) {
	release, err := r.s.op(ctx, "invoices.LockByID")
	if err != nil {
		return nil, err
	}
	release()
	return r.ByID(ctx, id)
}

func (r *invoiceRepo) ByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return r.first(ctx, models.InvoiceFilter{InvoiceNumber: &number})
}

func (r *invoiceRepo) OpenByAccount(ctx context.Context, accountID uint) (*models.Invoice, error) {
	status := models.InvoiceStatusPending
	return r.first(ctx, models.InvoiceFilter{AccountID: &accountID, Status: &status})
}

func (r *invoiceRepo) first(ctx context.Context, filter models.InvoiceFilter) (*models.Invoice, error) {
	rows, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *invoiceRepo) match(inv models.Invoice, f models.InvoiceFilter) bool {
	switch {
	case f.ID != nil && inv.ID != *f.ID:
		return false
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, inv.ID):
		return false
	case f.AccountID != nil && inv.AccountID != *f.AccountID:
		return false
	case f.InvoiceNumber != nil && inv.InvoiceNumber != *f.InvoiceNumber:
		return false
	case f.Status != nil && inv.Status != *f.Status:
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, inv.Status):
		return false
	case f.IssuedAfter != nil && inv.IssueDate.Before(*f.IssuedAfter):
		return false
	case f.IssuedBefore != nil && inv.IssueDate.After(*f.IssuedBefore):
		return false
	}

	if f.Search != nil {
		term := strings.TrimSpace(*f.Search)
		if term == "" {
			return true
		}
		owner := r.s.data.accounts[inv.AccountID]
		ref := ""
		if inv.PaymentReference != nil {
			ref = *inv.PaymentReference
		}
		return containsFold(inv.InvoiceNumber, term) ||
			containsFold(owner.Username, term) ||
			containsFold(owner.Email, term) ||
			containsFold(ref, term)
	}
	return true
}

func (r *invoiceRepo) filtered(filter models.InvoiceFilter) []*models.Invoice {
	rows := []*models.Invoice{}
	for _, inv := range r.s.data.invoices {
		if r.match(inv, filter) {
			rows = append(rows, &inv)
		}
	}
	return rows
}

func (r *invoiceRepo) ByFilter(ctx context.Context, filter models.InvoiceFilter, orderBy string, limit, offset int) ([]*models.Invoice, error) {
	release, err := r.s.op(ctx, "invoices.ByFilter")
	if err != nil {
		return nil, err
	}
	defer release()

	rows := r.filtered(filter)
	switch orderBy {
	case "", repository.InvoiceOrderNewest:
		slices.SortFunc(rows, func(a, b *models.Invoice) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
	case repository.InvoiceOrderByStatus:
		slices.SortFunc(rows, func(a, b *models.Invoice) int {
			if c := cmp.Compare(a.Status, b.Status); c != 0 {
				return c
			}
			if c := b.IssueDate.Compare(a.IssueDate); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
	default:
		return nil, fmt.Errorf("memory: unsupported invoice order %q", orderBy)
	}
	return page(rows, limit, offset), nil
}

func (r *invoiceRepo) Count(ctx context.Context, filter models.InvoiceFilter) (int64, error) {
	release, err := r.s.op(ctx, "invoices.Count")
	if err != nil {
		return 0, err
	}
	defer release()
	return int64(len(r.filtered(filter))), nil
}

func (r *invoiceRepo) Exists(ctx context.Context, filter models.InvoiceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *invoiceRepo) SumTotal(ctx context.Context, filter models.InvoiceFilter) (pricing.Money, error) {
	release, err := r.s.op(ctx, "invoices.SumTotal")
	if err != nil {
		return 0, err
	}
	defer release()

	var total pricing.Money
	for _, inv := range r.filtered(filter) {
		total = total.Add(inv.TotalAmount)
	}
	return total, nil
}

// checkUnique mirrors uk_invoices_invoice_number and the one-pending-invoice-per-account index
func (r *invoiceRepo) checkUnique(inv *models.Invoice) error {
	for id, other := range r.s.data.invoices {
		if id == inv.ID {
			continue
		}
		if other.InvoiceNumber == inv.InvoiceNumber {
			return fmt.Errorf("%w: invoices.invoice_number %q", ErrUniqueViolation, inv.InvoiceNumber)
		}
		if inv.Status == models.InvoiceStatusPending && other.Status == models.InvoiceStatusPending && other.AccountID == inv.AccountID {
			return fmt.Errorf("%w: one pending invoice per account %d", ErrUniqueViolation, inv.AccountID)
		}
	}
	return nil
}

func (r *invoiceRepo) store(inv *models.Invoice) {
	stored := *inv
	stored.Account = nil
	stored.Items = nil
	stored.Participants = nil
	r.s.data.invoices[inv.ID] = stored
}

func (r *invoiceRepo) insert(inv *models.Invoice) error {
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusPending
	}
	if err := r.checkUnique(inv); err != nil {
		return err
	}
	inv.ID = r.s.data.nextID()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now()
	}
	inv.UpdatedAt = inv.CreatedAt
	r.store(inv)
	return nil
}

func (r *invoiceRepo) Save(ctx context.Context, inv *models.Invoice) error {
	release, err := r.s.op(ctx, "invoices.Save")
	if err != nil {
		return err
	}
	defer release()
	return r.insert(inv)
}

func (r *invoiceRepo) SaveBatch(ctx context.Context, invoices []*models.Invoice) error {
	release, err := r.s.op(ctx, "invoices.SaveBatch")
	if err != nil {
		return err
	}
	defer release()

	return r.s.atomically(func() error {
		for _, inv := range invoices {
			if err := r.insert(inv); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *invoiceRepo) Update(ctx context.Context, inv *models.Invoice) error {
	release, err := r.s.op(ctx, "invoices.Update")
	if err != nil {
		return err
	}
	defer release()

	if _, ok := r.s.data.invoices[inv.ID]; !ok {
		return fmt.Errorf("memory: invoice %d not found", inv.ID)
	}
	if err := r.checkUnique(inv); err != nil {
		return err
	}
	inv.UpdatedAt = now()
	r.store(inv)
	return nil
}

func (r *invoiceRepo) AttachParticipants(ctx context.Context, invoiceID uint, participantIDs []uint) error {
	release, err := r.s.op(ctx, "invoices.AttachParticipants")
	if err != nil {
		return err
	}
	defer release()

	for _, id := range participantIDs {
		r.s.data.links[link{invoiceID: invoiceID, participantID: id}] = struct{}{}
	}
	return nil
}

func (r *invoiceRepo) DetachParticipant(ctx context.Context, invoiceID, participantID uint) (bool, error) {
	release, err := r.s.op(ctx, "invoices.DetachParticipant")
	if err != nil {
		return false, err
	}
	defer release()

	key := link{invoiceID: invoiceID, participantID: participantID}
	if _, ok := r.s.data.links[key]; !ok {
		return false, nil
	}
	delete(r.s.data.links, key)
	return true, nil
}

func (r *invoiceRepo) CountParticipants(ctx context.Context, invoiceID uint) (int, error) {
	release, err := r.s.op(ctx, "invoices.CountParticipants")
	if err != nil {
		return 0, err
	}
	defer release()

	n := 0
	for l := range r.s.data.links {
		if l.invoiceID == invoiceID {
			n++
		}
	}
	return n, nil
}

func (r *invoiceRepo) ReplaceItems(ctx context.Context, invoiceID uint, items []models.InvoiceItem) error {
	release, err := r.s.op(ctx, "invoices.ReplaceItems")
	if err != nil {
		return err
	}
	defer release()

	for id, item := range r.s.data.items {
		if item.InvoiceID == invoiceID {
			delete(r.s.data.items, id)
		}
	}
	for i := range items {
		items[i].ID = r.s.data.nextID()
		items[i].InvoiceID = invoiceID
		r.s.data.items[items[i].ID] = items[i]
	}
	return nil
}

func (r *invoiceRepo) Items(ctx context.Context, invoiceID uint) ([]models.InvoiceItem, error) {
	release, err := r.s.op(ctx, "invoices.Items")
	if err != nil {
		return nil, err
	}
	defer release()

	rows := []models.InvoiceItem{}
	for _, item := range r.s.data.items {
		if item.InvoiceID == invoiceID {
			rows = append(rows, item)
		}
	}
	slices.SortFunc(rows, func(a, b models.InvoiceItem) int { return cmp.Compare(a.ID, b.ID) })
	return rows, nil
}

var (
	_ repository.Transactor            = (*Store)(nil)
	_ repository.AccountRepository     = (*accountRepo)(nil)
	_ repository.ProfileRepository     = (*profileRepo)(nil)
	_ repository.ParticipantRepository = (*participantRepo)(nil)
	_ repository.InvoiceRepository     = (*invoiceRepo)(nil)
)
