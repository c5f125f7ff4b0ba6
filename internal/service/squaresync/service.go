package squaresync

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/employee"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/timeclock"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/locks"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
)

// SquareAPI is the subset of the Square client the sync engine calls.
type SquareAPI interface {
	ListLocations(ctx context.Context) ([]square.Location, error)
	ListTeamMembers(ctx context.Context, locationID string) ([]square.TeamMember, error)
	ListTimecards(ctx context.Context, f square.TimecardFilter) ([]square.Timecard, error)
}

// ClientFactory builds a SquareAPI bound to one access token.
type ClientFactory func(accessToken string) SquareAPI

// TxRunner runs fn in a transaction shared by repository calls made with
// the ctx it receives.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type StateSigner interface {
	GenerateOAuthState(companyID string, userID string) (string, error)
	ValidateOAuthState(state string) (companyID string, userID string, err error)
}

type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

type Config struct {
	// BootstrapDays is the lookback for a company that never synced.
	BootstrapDays int
	// RefreshWindow refreshes tokens expiring within this duration.
	RefreshWindow time.Duration
	// WorkdayTimezone buckets timecards into workdays.
	WorkdayTimezone string
	RedirectURL     string
}

type Dependencies struct {
	Connections connection.ConnectionRepository
	Mappings    mapping.MappingRepository
	Employees   employee.EmployeeRepository
	TimeClock   timeclock.TimeClockRepository
	Tx          TxRunner
	OAuth       square.OAuthService
	NewClient   ClientFactory
	Locker      locks.Locker
	States      StateSigner
	Verifier    SignatureVerifier
}

type SquareSyncServiceImpl struct {
	connections connection.ConnectionRepository
	mappings    mapping.MappingRepository
	employees   employee.EmployeeRepository
	timeClock   timeclock.TimeClockRepository
	tx          TxRunner
	oauth       square.OAuthService
	newClient   ClientFactory
	locker      locks.Locker
	states      StateSigner
	verifier    SignatureVerifier

	cfg     Config
	workday *time.Location
	now     func() time.Time
}

func NewSquareSyncService(deps Dependencies, cfg Config) *SquareSyncServiceImpl {
	if cfg.BootstrapDays <= 0 {
		cfg.BootstrapDays = 30
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = time.Hour
	}

	workday := time.UTC
	if cfg.WorkdayTimezone != "" {
		loc, err := time.LoadLocation(cfg.WorkdayTimezone)
		if err != nil {
			slog.Warn("Unknown workday timezone, falling back to UTC", "timezone", cfg.WorkdayTimezone, "error", err)
		} else {
			workday = loc
		}
	}

	locker := deps.Locker
	if locker == nil {
		locker = locks.NewLocalLocker()
	}

	return &SquareSyncServiceImpl{
		connections: deps.Connections,
		mappings:    deps.Mappings,
		employees:   deps.Employees,
		timeClock:   deps.TimeClock,
		tx:          deps.Tx,
		oauth:       deps.OAuth,
		newClient:   deps.NewClient,
		locker:      locker,
		states:      deps.States,
		verifier:    deps.Verifier,
		cfg:         cfg,
		workday:     workday,
		now:         time.Now,
	}
}

var _ squaresync.SquareSyncService = (*SquareSyncServiceImpl)(nil)
