package squaresync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/employee"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/timeclock"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
)

func strPtr(s string) *string { return &s }

type fakeConnections struct {
	mu    sync.Mutex
	conns map[string]connection.SquareConnection
}

func newFakeConnections() *fakeConnections {
	return &fakeConnections{conns: make(map[string]connection.SquareConnection)}
}

func (f *fakeConnections) put(c connection.SquareConnection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[c.CompanyID] = c
}

func (f *fakeConnections) get(companyID string) connection.SquareConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[companyID]
}

func (f *fakeConnections) GetByCompanyID(ctx context.Context, companyID string) (connection.SquareConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[companyID]
	if !ok {
		return connection.SquareConnection{}, connection.ErrConnectionNotFound
	}
	return c, nil
}

func (f *fakeConnections) GetByMerchantID(ctx context.Context, merchantID string) (connection.SquareConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.MerchantID != nil && *c.MerchantID == merchantID && c.SyncEnabled {
			return c, nil
		}
	}
	return connection.SquareConnection{}, connection.ErrConnectionNotFound
}

func (f *fakeConnections) SaveOAuth(ctx context.Context, companyID string, merchantID string, tokens connection.Tokens) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, other := range f.conns {
		if id != companyID && other.MerchantID != nil && *other.MerchantID == merchantID {
			return false, connection.ErrMerchantAlreadyLinked
		}
	}

	c, exists := f.conns[companyID]
	changed := exists && c.MerchantID != nil && *c.MerchantID != merchantID
	if !exists || c.MerchantID == nil || changed {
		c.LocationID = nil
		c.SyncEnabled = false
		c.LastSyncAt = nil
	}
	c.CompanyID = companyID
	c.MerchantID = strPtr(merchantID)
	c.AccessToken = strPtr(tokens.AccessToken)
	c.RefreshToken = strPtr(tokens.RefreshToken)
	expiresAt := tokens.ExpiresAt
	c.TokenExpiresAt = &expiresAt
	c.LastSyncError = nil
	f.conns[companyID] = c
	return changed, nil
}

func (f *fakeConnections) UpdateTokens(ctx context.Context, companyID string, tokens connection.Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[companyID]
	if !ok || c.RefreshToken == nil {
		return connection.ErrConnectionNotConfigured
	}
	c.AccessToken = strPtr(tokens.AccessToken)
	if tokens.RefreshToken != "" {
		c.RefreshToken = strPtr(tokens.RefreshToken)
	}
	expiresAt := tokens.ExpiresAt
	c.TokenExpiresAt = &expiresAt
	c.LastSyncError = nil
	f.conns[companyID] = c
	return nil
}

func (f *fakeConnections) update(companyID string, fn func(c *connection.SquareConnection)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[companyID]
	if !ok {
		return connection.ErrConnectionNotFound
	}
	fn(&c)
	f.conns[companyID] = c
	return nil
}

func (f *fakeConnections) UpdateLocation(ctx context.Context, companyID string, locationID string) error {
	return f.update(companyID, func(c *connection.SquareConnection) { c.LocationID = strPtr(locationID) })
}

func (f *fakeConnections) SetSyncEnabled(ctx context.Context, companyID string, enabled bool) error {
	return f.update(companyID, func(c *connection.SquareConnection) { c.SyncEnabled = enabled })
}

func (f *fakeConnections) UpdateLastSync(ctx context.Context, companyID string, at time.Time) error {
	return f.update(companyID, func(c *connection.SquareConnection) {
		c.LastSyncAt = &at
		c.LastSyncError = nil
	})
}

func (f *fakeConnections) SetSyncError(ctx context.Context, companyID string, code string) error {
	return f.update(companyID, func(c *connection.SquareConnection) { c.LastSyncError = strPtr(code) })
}

func (f *fakeConnections) ListSyncEnabledCompanyIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.conns {
		if c.SyncEnabled && c.IsConfigured() && c.HasLocation() {
			out = append(out, c.CompanyID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeConnections) Clear(ctx context.Context, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[companyID]
	if !ok {
		return nil
	}
	f.conns[companyID] = connection.SquareConnection{CompanyID: companyID, CreatedAt: c.CreatedAt}
	return nil
}

type fakeMappings struct {
	mu     sync.Mutex
	rows   []mapping.EmployeeMapping
	nextID int
}

func (f *fakeMappings) ListByCompanyID(ctx context.Context, companyID string) ([]mapping.EmployeeMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []mapping.EmployeeMapping
	for _, m := range f.rows {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMappings) ListConfirmed(ctx context.Context, companyID string) ([]mapping.EmployeeMapping, error) {
	all, _ := f.ListByCompanyID(ctx, companyID)
	var out []mapping.EmployeeMapping
	for _, m := range all {
		if m.Status == mapping.StatusConfirmed {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMappings) CreateIfAbsent(ctx context.Context, m mapping.EmployeeMapping) (mapping.EmployeeMapping, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.CompanyID == m.CompanyID && existing.SquareTeamMemberID == m.SquareTeamMemberID {
			return mapping.EmployeeMapping{}, false, nil
		}
	}
	f.nextID++
	m.ID = fmt.Sprintf("mapping-%d", f.nextID)
	if m.Status == "" {
		m.Status = mapping.StatusSuggested
	}
	f.rows = append(f.rows, m)
	return m, true, nil
}

func (f *fakeMappings) find(id, companyID string) (int, error) {
	for i, m := range f.rows {
		if m.ID == id && m.CompanyID == companyID {
			return i, nil
		}
	}
	return -1, mapping.ErrMappingNotFound
}

func (f *fakeMappings) GetByID(ctx context.Context, id string, companyID string) (mapping.EmployeeMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(id, companyID)
	if err != nil {
		return mapping.EmployeeMapping{}, err
	}
	return f.rows[i], nil
}

func (f *fakeMappings) Confirm(ctx context.Context, id string, companyID string, employeeID, tipEmployeeID *string, confirmedBy string, at time.Time) (mapping.EmployeeMapping, error) {
	if (employeeID == nil) == (tipEmployeeID == nil) {
		return mapping.EmployeeMapping{}, mapping.ErrInvalidMappingLink
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(id, companyID)
	if err != nil {
		return mapping.EmployeeMapping{}, err
	}
	f.rows[i].EmployeeID = employeeID
	f.rows[i].TipEmployeeID = tipEmployeeID
	f.rows[i].Status = mapping.StatusConfirmed
	f.rows[i].ConfirmedBy = &confirmedBy
	f.rows[i].ConfirmedAt = &at
	return f.rows[i], nil
}

func (f *fakeMappings) Ignore(ctx context.Context, id string, companyID string) (mapping.EmployeeMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(id, companyID)
	if err != nil {
		return mapping.EmployeeMapping{}, err
	}
	f.rows[i].Status = mapping.StatusIgnored
	return f.rows[i], nil
}

func (f *fakeMappings) Delete(ctx context.Context, id string, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, err := f.find(id, companyID)
	if err != nil {
		return err
	}
	f.rows = append(f.rows[:i], f.rows[i+1:]...)
	return nil
}

func (f *fakeMappings) DeleteByCompanyID(ctx context.Context, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, m := range f.rows {
		if m.CompanyID != companyID {
			kept = append(kept, m)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeMappings) CountByStatus(ctx context.Context, companyID string) (mapping.Counts, error) {
	all, _ := f.ListByCompanyID(ctx, companyID)
	var c mapping.Counts
	for _, m := range all {
		switch m.Status {
		case mapping.StatusConfirmed:
			c.Confirmed++
		case mapping.StatusSuggested:
			c.Suggested++
		case mapping.StatusIgnored:
			c.Ignored++
		}
	}
	return c, nil
}

type fakeEmployees struct {
	employees    []employee.Employee
	tipEmployees []employee.TipEmployee
}

func (f *fakeEmployees) ListActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	return f.employees, nil
}

func (f *fakeEmployees) ListTipEmployeesByCompanyID(ctx context.Context, companyID string) ([]employee.TipEmployee, error) {
	return f.tipEmployees, nil
}

func (f *fakeEmployees) Exists(ctx context.Context, companyID string, employeeID, tipEmployeeID *string) (bool, error) {
	if employeeID != nil {
		for _, e := range f.employees {
			if e.ID == *employeeID {
				return true, nil
			}
		}
	}
	if tipEmployeeID != nil {
		for _, te := range f.tipEmployees {
			if te.ID == *tipEmployeeID {
				return true, nil
			}
		}
	}
	return false, nil
}

// fakeTimeClock keys rows by (company, external id) like the unique index.
type fakeTimeClock struct {
	mu      sync.Mutex
	entries map[string]timeclock.Entry
	breaks  map[string]timeclock.Break
	failOn  map[string]error
	writes  int
}

func newFakeTimeClock() *fakeTimeClock {
	return &fakeTimeClock{
		entries: make(map[string]timeclock.Entry),
		breaks:  make(map[string]timeclock.Break),
		failOn:  make(map[string]error),
	}
}

func (f *fakeTimeClock) UpsertExternalEntry(ctx context.Context, e timeclock.Entry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ExternalID == nil {
		return "", timeclock.ErrMissingExternalID
	}
	if err, ok := f.failOn[*e.ExternalID]; ok {
		return "", err
	}
	key := e.CompanyID + "/" + *e.ExternalID
	if existing, ok := f.entries[key]; ok {
		e.ID = existing.ID
		e.Source = existing.Source
	} else {
		e.ID = "entry-" + *e.ExternalID
	}
	f.entries[key] = e
	f.writes++
	return e.ID, nil
}

func (f *fakeTimeClock) UpsertExternalBreak(ctx context.Context, b timeclock.Break) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ExternalID == nil {
		return "", timeclock.ErrMissingExternalID
	}
	if err, ok := f.failOn[*b.ExternalID]; ok {
		return "", err
	}
	key := b.CompanyID + "/" + *b.ExternalID
	if existing, ok := f.breaks[key]; ok {
		b.ID = existing.ID
	} else {
		b.ID = "break-" + *b.ExternalID
	}
	f.breaks[key] = b
	f.writes++
	return b.ID, nil
}

func (f *fakeTimeClock) GetByExternalID(ctx context.Context, companyID string, externalID string) (timeclock.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[companyID+"/"+externalID]
	if !ok {
		return timeclock.Entry{}, timeclock.ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeTimeClock) ListBreaks(ctx context.Context, companyID string, entryID string) ([]timeclock.Break, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []timeclock.Break
	for _, b := range f.breaks {
		if b.CompanyID == companyID && b.EntryID == entryID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeTimeClock) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeOAuth struct {
	mu           sync.Mutex
	refreshCalls int
	refreshErr   error
	refreshToken square.Token
	exchangeTok  square.Token
	exchangeErr  error
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://connect.squareupsandbox.com/oauth2/authorize?state=" + state
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string, redirectURI string) (square.Token, error) {
	return f.exchangeTok, f.exchangeErr
}

func (f *fakeOAuth) Refresh(ctx context.Context, refreshToken string) (square.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return square.Token{}, f.refreshErr
	}
	return f.refreshToken, nil
}

func (f *fakeOAuth) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type fakeSquare struct {
	locations   []square.Location
	members     []square.TeamMember
	timecards   []square.Timecard
	lastFilter  square.TimecardFilter
	timecardErr error
}

func (f *fakeSquare) ListLocations(ctx context.Context) ([]square.Location, error) {
	return f.locations, nil
}

func (f *fakeSquare) ListTeamMembers(ctx context.Context, locationID string) ([]square.TeamMember, error) {
	return f.members, nil
}

func (f *fakeSquare) ListTimecards(ctx context.Context, filter square.TimecardFilter) ([]square.Timecard, error) {
	f.lastFilter = filter
	return f.timecards, f.timecardErr
}
