package waitlist

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/logutil"
)

// StatsGenerationKey holds the current stats generation token. Every write
// replaces it, and snapshots are stored under StatsCacheKey plus the token
// that was current before their queries ran, so a snapshot computed across a
// write is never read back.
const (
	StatsCacheKey      = "waitlist:stats"
	StatsGenerationKey = "waitlist:stats:generation"

	statsGenerationTTL = 24 * time.Hour
)

const (
	DefaultPageLimit = 50
	DefaultMaxLimit  = 100
	trendWindow      = 7 * 24 * time.Hour
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Options configures a Service. Zero values select defaults.
type Options struct {
	// Cache memoizes GetStats when StatsTTL > 0. Optional.
	Cache    cache.Cache
	StatsTTL time.Duration

	// Location defines calendar days for Today and the trend. Defaults to time.Local.
	Location *time.Location

	// FillTrendGaps emits zero buckets for days without sign-ups.
	FillTrendGaps bool

	DefaultPageLimit int
	MaxPageLimit     int

	Now    func() time.Time
	Logger *slog.Logger
}

// Service implements registration, ranking, listing and statistics.
type Service struct {
	repo         Repository
	cache        cache.Cache
	statsTTL     time.Duration
	loc          *time.Location
	fillGaps     bool
	defaultLimit int
	maxLimit     int
	now          func() time.Time
	logger       *slog.Logger
}

// NewService creates a Service backed by repo.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:         repo,
		cache:        opts.Cache,
		statsTTL:     opts.StatsTTL,
		loc:          opts.Location,
		fillGaps:     opts.FillTrendGaps,
		defaultLimit: opts.DefaultPageLimit,
		maxLimit:     opts.MaxPageLimit,
		now:          opts.Now,
		logger:       logutil.NoopIfNil(opts.Logger),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxLimit <= 0 {
		s.maxLimit = DefaultMaxLimit
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = DefaultPageLimit
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// DefaultLimit is the page size used when a query does not set one.
func (s *Service) DefaultLimit() int { return s.defaultLimit }

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates and stores a new sign-up.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Entry, error) {
	email := NormalizeEmail(req.Email)
	if email == "" {
		return nil, invalid("email", "is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, invalid("email", "is not a valid address")
	}

	source := req.Source
	if source == "" {
		source = SourceWaitlist
	}
	if !source.Valid() {
		return nil, invalid("source", "must be one of waitlist, beta_signup, demo_request")
	}

	// Fast path only; the storage unique index decides.
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, storageErr("check email", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, storageErr("generate id", err)
	}

	now := s.now().UTC()
	entry := &Entry{
		ID:        id.String(),
		Email:     email,
		Source:    source,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  req.Metadata,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, storageErr("create entry", err)
	}

	s.invalidateStats(ctx)
	s.logger.Debug("waitlist entry registered", "id", entry.ID, "position", entry.Position, "source", entry.Source)
	return entry, nil
}

// UpdateStatus applies a partial update and returns the re-read entry.
func (s *Service) UpdateStatus(ctx context.Context, id string, req UpdateRequest) (*Entry, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalid("status", "must be one of pending, invited, active, declined")
	}

	if req.Status != nil || req.Notes != nil {
		err := s.repo.UpdateStatus(ctx, id, StatusUpdate{
			Status: req.Status,
			Notes:  req.Notes,
			At:     s.now().UTC(),
		})
		if err != nil {
			return nil, storageErr("update entry", err)
		}
		s.invalidateStats(ctx)
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get entry", err)
	}
	return entry, nil
}

// ListEntries returns one page of redacted entries, newest first.
// A zero Limit selects the default page size and larger limits are capped at
// the configured maximum; Pagination.Limit reports the size actually used.
func (s *Service) ListEntries(ctx context.Context, q ListQuery) (*ListResult, error) {
	if q.Page < 1 {
		return nil, invalid("page", "must be at least 1")
	}
	if q.Limit == 0 {
		q.Limit = s.defaultLimit
	}
	if q.Limit < 1 {
		return nil, invalid("limit", "must be at least 1")
	}
	if q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalid("status", "must be one of pending, invited, active, declined")
	}

	// Pages whose offset does not fit an int lie past any real result set.
	offset := math.MaxInt
	if q.Page-1 <= math.MaxInt/q.Limit {
		offset = (q.Page - 1) * q.Limit
	}

	entries, total, err := s.repo.List(ctx, ListFilter{
		Status: q.Status,
		Search: strings.ToLower(strings.TrimSpace(q.Search)),
		Offset: offset,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, storageErr("list entries", err)
	}

	redacted := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		redacted = append(redacted, e.Redacted())
	}

	return &ListResult{
		Entries: redacted,
		Pagination: Pagination{
			Current: q.Page,
			Pages:   int(math.Ceil(float64(total) / float64(q.Limit))),
			Total:   total,
			Limit:   q.Limit,
		},
	}, nil
}

// GetStats returns status counts, recent sign-up counts and the daily trend.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	gen, cacheable := s.statsGeneration(ctx)
	if cacheable {
		if stats, ok := s.cachedStats(ctx, gen); ok {
			return stats, nil
		}
	}

	now := s.now()
	localNow := now.In(s.loc)
	midnight := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, s.loc)
	weekStart := now.Add(-trendWindow)

	var (
		counts   map[Status]int64
		today    int64
		thisWeek int64
		created  []time.Time
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) (err error) {
		counts, err = s.repo.CountByStatus(ctx)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		today, err = s.repo.CountCreatedSince(ctx, midnight)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		thisWeek, err = s.repo.CountCreatedSince(ctx, weekStart)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		created, err = s.repo.CreatedTimesSince(ctx, weekStart)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, storageErr("compute stats", err)
	}

	stats := &Stats{
		Pending:  counts[StatusPending],
		Invited:  counts[StatusInvited],
		Active:   counts[StatusActive],
		Declined: counts[StatusDeclined],
		Today:    today,
		ThisWeek: thisWeek,
		Trend:    s.buildTrend(created, weekStart, now),
	}
	stats.Total = stats.Pending + stats.Invited + stats.Active + stats.Declined

	if cacheable {
		s.storeStats(ctx, gen, stats)
	}
	return stats, nil
}

// Ping checks storage connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) buildTrend(created []time.Time, from, to time.Time) []TrendPoint {
	buckets := make(map[string]int64)
	for _, t := range created {
		buckets[t.In(s.loc).Format(time.DateOnly)]++
	}

	trend := []TrendPoint{}
	first := from.In(s.loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, s.loc)
	last := to.In(s.loc).Format(time.DateOnly)
	for {
		key := day.Format(time.DateOnly)
		if n := buckets[key]; n > 0 || s.fillGaps {
			trend = append(trend, TrendPoint{Date: key, Count: n})
		}
		if key == last {
			break
		}
		day = day.AddDate(0, 0, 1)
	}
	return trend
}

func (s *Service) statsCacheEnabled() bool {
	return s.cache != nil && s.statsTTL > 0
}

// statsGeneration returns the current generation token, minting one when
// none is stored. ok is false when the stats cache is off or unreadable.
func (s *Service) statsGeneration(ctx context.Context) (gen string, ok bool) {
	if !s.statsCacheEnabled() {
		return "", false
	}
	raw, err := s.cache.Get(ctx, StatsGenerationKey)
	switch {
	case err == nil:
		return string(raw), true
	case !cache.IsMiss(err):
		s.logger.Warn("stats generation read failed", "error", err)
		return "", false
	}
	gen = uuid.NewString()
	if err := s.cache.Set(ctx, StatsGenerationKey, []byte(gen), statsGenerationTTL); err != nil {
		s.logger.Warn("stats generation write failed", "error", err)
		return "", false
	}
	return gen, true
}

func statsKey(gen string) string {
	return StatsCacheKey + ":" + gen
}

func (s *Service) cachedStats(ctx context.Context, gen string) (*Stats, bool) {
	raw, err := s.cache.Get(ctx, statsKey(gen))
	if err != nil {
		if !cache.IsMiss(err) {
			s.logger.Warn("stats cache read failed", "error", err)
		}
		return nil, false
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.logger.Warn("stats cache entry is corrupt", "error", err)
		return nil, false
	}
	return &stats, true
}

func (s *Service) storeStats(ctx context.Context, gen string, stats *Stats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsKey(gen), raw, s.statsTTL); err != nil {
		s.logger.Warn("stats cache write failed", "error", err)
	}
}

// invalidateStats rotates the generation token, orphaning every snapshot
// stored under the previous one.
func (s *Service) invalidateStats(ctx context.Context) {
	if !s.statsCacheEnabled() {
		return
	}
	// Detached so a cancelled request still rotates the generation.
	ctx = context.WithoutCancel(ctx)
	if err := s.cache.Set(ctx, StatsGenerationKey, []byte(uuid.NewString()), statsGenerationTTL); err != nil {
		s.logger.Warn("stats cache invalidation failed", "error", err)
	}
}
