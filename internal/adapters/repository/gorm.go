package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db *gorm.DB

	maxOpenConns    int
	connMaxLifetime time.Duration
	slowThreshold   time.Duration
	tracing         bool
}

var _ Store = (*GormStore)(nil)

// OpenMySQL connects to MySQL. The DSN must carry parseTime=true.
func OpenMySQL(dsn string, opts ...Option) (*GormStore, error) {
	cfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	return Open(mysql.New(mysql.Config{DSN: cfg.FormatDSN(), DSNConfig: cfg}), opts...)
}

// mysqlConfig parses dsn and switches the driver to matched-row counts.
// Without it an UPDATE that rewrites the current value reports 0 rows and
// reads as a missing row.
func mysqlConfig(dsn string) (*gomysql.Config, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ClientFoundRows = true
	return cfg, nil
}

// Open connects through any gorm dialector and applies opts.
func Open(dialector gorm.Dialector, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		maxOpenConns:    25,
		connMaxLifetime: 5 * time.Minute,
		slowThreshold:   time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(gormWriter{log: logger.GetOrNop().Named("gorm")}, gormlogger.Config{
			SlowThreshold:             s.slowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(s.maxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(s.connMaxLifetime)

	if s.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("install tracing plugin: %w", err)
		}
	}

	s.db = db
	return s, nil
}

// Migrate creates or alters the schema.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SaveClient implements Store.SaveClient.
func (s *GormStore) SaveClient(ctx context.Context, c model.Client) (_ model.Client, err error) {
	defer func(start time.Time) { observe("save_client", start, err) }(time.Now())

	c.ContactEmail = strings.TrimSpace(c.ContactEmail)
	if err = validateClient(c); err != nil {
		return model.Client{}, err
	}
	row := clientRow{ID: c.ID, CompanyName: c.CompanyName, ContactEmail: c.ContactEmail}
	if err = upsertByID(s.db.WithContext(ctx), &row, "company_name", "contact_email"); err != nil {
		return model.Client{}, fmt.Errorf("save client: %w", err)
	}
	c.ID = row.ID
	return c, nil
}

// SaveProject implements Store.SaveProject.
func (s *GormStore) SaveProject(ctx context.Context, p model.Project) (_ model.Project, err error) {
	defer func(start time.Time) { observe("save_project", start, err) }(time.Now())

	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.RequiredServices = normalizeTags(p.RequiredServices)
	if err = validateProject(p); err != nil {
		return model.Project{}, err
	}

	row := projectRow{ID: p.ID, ClientID: p.ClientID, Country: p.Country, Status: string(p.Status)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&clientRow{}).Where("id = ?", p.ClientID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown client %d", ErrInvalidProject, p.ClientID)
		}
		if err := upsertByID(tx, &row, "client_id", "country", "status"); err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", row.ID).Delete(&projectServiceRow{}).Error; err != nil {
			return err
		}
		if len(p.RequiredServices) == 0 {
			return nil
		}
		links := make([]projectServiceRow, 0, len(p.RequiredServices))
		for _, svc := range p.RequiredServices {
			links = append(links, projectServiceRow{ProjectID: row.ID, Service: svc})
		}
		return tx.Create(&links).Error
	})
	if err != nil {
		if errors.Is(err, ErrInvalidProject) {
			return model.Project{}, err
		}
		return model.Project{}, fmt.Errorf("save project: %w", err)
	}
	return s.Project(ctx, row.ID)
}

// SaveVendor implements Store.SaveVendor.
func (s *GormStore) SaveVendor(ctx context.Context, v model.Vendor) (_ model.Vendor, err error) {
	defer func(start time.Time) { observe("save_vendor", start, err) }(time.Now())

	v.Services = normalizeTags(v.Services)
	v.Countries = normalizeCountries(v.Countries)
	if err = validateVendor(v); err != nil {
		return model.Vendor{}, err
	}

	row := vendorRow{
		ID:               v.ID,
		Name:             v.Name,
		ContactEmail:     v.ContactEmail,
		Rating:           v.Rating,
		ResponseSLAHours: v.ResponseSLAHours,
		IsActive:         v.Active,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertByID(tx, &row, "name", "contact_email", "rating", "response_sla_hours", "is_active"); err != nil {
			return err
		}
		if err := tx.Where("vendor_id = ?", row.ID).Delete(&vendorServiceRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vendor_id = ?", row.ID).Delete(&vendorCountryRow{}).Error; err != nil {
			return err
		}
		if len(v.Services) > 0 {
			links := make([]vendorServiceRow, 0, len(v.Services))
			for _, svc := range v.Services {
				links = append(links, vendorServiceRow{VendorID: row.ID, Service: svc})
			}
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		if len(v.Countries) > 0 {
			links := make([]vendorCountryRow, 0, len(v.Countries))
			for _, c := range v.Countries {
				links = append(links, vendorCountryRow{VendorID: row.ID, Country: c})
			}
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Vendor{}, fmt.Errorf("save vendor: %w", err)
	}
	v.ID = row.ID
	return v, nil
}

// ActiveProjectIDs implements Store.ActiveProjectIDs.
func (s *GormStore) ActiveProjectIDs(ctx context.Context) (_ []int64, err error) {
	defer func(start time.Time) { observe("active_project_ids", start, err) }(time.Now())

	var ids []int64
	err = s.db.WithContext(ctx).Model(&projectRow{}).
		Where("status = ?", string(model.ProjectActive)).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active projects: %w", err)
	}
	return ids, nil
}

// Project implements Store.Project.
func (s *GormStore) Project(ctx context.Context, id int64) (_ model.Project, err error) {
	defer func(start time.Time) { observe("project", start, err) }(time.Now())

	var row projectRow
	err = s.db.WithContext(ctx).
		Preload("Client").
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("service") }).
		First(&row, id).Error
	if err != nil {
		return model.Project{}, translate("load project", err)
	}

	services := make([]string, 0, len(row.Services))
	for _, svc := range row.Services {
		services = append(services, svc.Service)
	}
	return model.Project{
		ID:               row.ID,
		ClientID:         row.ClientID,
		Country:          row.Country,
		RequiredServices: services,
		Status:           model.ProjectStatus(row.Status),
		ClientName:       row.Client.CompanyName,
		ClientEmail:      row.Client.ContactEmail,
	}, nil
}

// CandidateVendors implements Store.CandidateVendors as one join and
// aggregate: the overlap is the number of distinct matching service rows.
func (s *GormStore) CandidateVendors(ctx context.Context, country string, services []string) (_ []model.Candidate, err error) {
	defer func(start time.Time) { observe("candidate_vendors", start, err) }(time.Now())

	wanted := normalizeTags(services)
	if len(wanted) == 0 {
		return nil, nil
	}
	country = strings.ToUpper(strings.TrimSpace(country))

	var rows []candidateRow
	err = s.db.WithContext(ctx).
		Table("vendors AS v").
		Select("v.id AS vendor_id, v.name AS vendor_name, v.rating AS rating, "+
			"v.response_sla_hours AS response_sla_hours, COUNT(DISTINCT vs.service) AS services_overlap").
		Joins("JOIN vendor_countries vc ON vc.vendor_id = v.id AND vc.country = ?", country).
		Joins("JOIN vendor_services vs ON vs.vendor_id = v.id AND vs.service IN ?", wanted).
		Where("v.is_active = ?", true).
		Group("v.id, v.name, v.rating, v.response_sla_hours").
		Order("v.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find candidate vendors: %w", err)
	}

	out := make([]model.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Candidate(r))
	}
	return out, nil
}

// Vendor implements Store.Vendor.
func (s *GormStore) Vendor(ctx context.Context, id int64) (_ model.Vendor, err error) {
	defer func(start time.Time) { observe("vendor", start, err) }(time.Now())

	var row vendorRow
	err = s.db.WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("service") }).
		Preload("Countries", func(db *gorm.DB) *gorm.DB { return db.Order("country") }).
		First(&row, id).Error
	if err != nil {
		return model.Vendor{}, translate("load vendor", err)
	}

	v := model.Vendor{
		ID:               row.ID,
		Name:             row.Name,
		ContactEmail:     row.ContactEmail,
		Active:           row.IsActive,
		Rating:           row.Rating,
		ResponseSLAHours: row.ResponseSLAHours,
	}
	for _, svc := range row.Services {
		v.Services = append(v.Services, svc.Service)
	}
	for _, c := range row.Countries {
		v.Countries = append(v.Countries, c.Country)
	}
	return v, nil
}

// FindMatch implements Store.FindMatch.
func (s *GormStore) FindMatch(ctx context.Context, projectID, vendorID int64) (_ model.Match, _ bool, err error) {
	defer func(start time.Time) { observe("find_match", start, err) }(time.Now())

	var row matchRow
	err = s.db.WithContext(ctx).
		Where("project_id = ? AND vendor_id = ?", projectID, vendorID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Match{}, false, nil
	}
	if err != nil {
		return model.Match{}, false, fmt.Errorf("find match: %w", err)
	}
	return row.toModel(), true, nil
}

// CreateMatch implements Store.CreateMatch.
func (s *GormStore) CreateMatch(ctx context.Context, m model.Match) (_ model.Match, err error) {
	defer func(start time.Time) { observe("create_match", start, err) }(time.Now())

	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	row := matchRow{
		ProjectID: m.ProjectID,
		VendorID:  m.VendorID,
		Score:     toDecimal(m.Score),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.Match{}, fmt.Errorf("%w: project %d vendor %d", ErrDuplicateMatch, m.ProjectID, m.VendorID)
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("create match: %w", err)
	}
	return row.toModel(), nil
}

// UpdateMatch implements Store.UpdateMatch.
func (s *GormStore) UpdateMatch(ctx context.Context, id int64, score float64, at time.Time) (err error) {
	defer func(start time.Time) { observe("update_match", start, err) }(time.Now())

	res := s.db.WithContext(ctx).Model(&matchRow{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"score": toDecimal(score), "updated_at": at.UTC()})
	return rowsAffected("update match", res)
}

// TouchMatch implements Store.TouchMatch.
func (s *GormStore) TouchMatch(ctx context.Context, id int64, at time.Time) (err error) {
	defer func(start time.Time) { observe("touch_match", start, err) }(time.Now())

	res := s.db.WithContext(ctx).Model(&matchRow{}).Where("id = ?", id).
		UpdateColumn("updated_at", at.UTC())
	return rowsAffected("touch match", res)
}

// MatchesByProject implements Store.MatchesByProject.
func (s *GormStore) MatchesByProject(ctx context.Context, projectID int64) (_ []model.Match, err error) {
	defer func(start time.Time) { observe("matches_by_project", start, err) }(time.Now())

	var rows []matchRow
	err = s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list project matches: %w", err)
	}
	out := make([]model.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ActiveVendorMatches implements Store.ActiveVendorMatches.
func (s *GormStore) ActiveVendorMatches(ctx context.Context) (_ []model.VendorMatch, err error) {
	defer func(start time.Time) { observe("active_vendor_matches", start, err) }(time.Now())

	var rows []vendorMatchRow
	err = s.db.WithContext(ctx).
		Table("match_table AS m").
		Select("m.id, m.project_id, m.vendor_id, m.score, m.created_at, m.updated_at, v.response_sla_hours").
		Joins("JOIN vendors v ON v.id = m.vendor_id").
		Where("v.is_active = ?", true).
		Order("m.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list active vendor matches: %w", err)
	}

	out := make([]model.VendorMatch, 0, len(rows))
	for _, r := range rows {
		m := matchRow{ID: r.ID, ProjectID: r.ProjectID, VendorID: r.VendorID, Score: r.Score, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
		out = append(out, model.VendorMatch{Match: m.toModel(), ResponseSLAHours: r.ResponseSLAHours})
	}
	return out, nil
}

// VendorHealth implements Store.VendorHealth.
func (s *GormStore) VendorHealth(ctx context.Context, vendorID int64) (_ model.VendorHealth, _ bool, err error) {
	defer func(start time.Time) { observe("vendor_health", start, err) }(time.Now())

	var row vendorHealthRow
	err = s.db.WithContext(ctx).Where("vendor_id = ?", vendorID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.VendorHealth{}, false, nil
	}
	if err != nil {
		return model.VendorHealth{}, false, fmt.Errorf("load vendor health: %w", err)
	}
	return model.VendorHealth{
		VendorID:      row.VendorID,
		SLAExpired:    row.SLAExpired,
		LastCheckedAt: row.LastCheckedAt,
	}, true, nil
}

// SaveVendorHealth implements Store.SaveVendorHealth as an upsert on vendor_id.
func (s *GormStore) SaveVendorHealth(ctx context.Context, h model.VendorHealth) (err error) {
	defer func(start time.Time) { observe("save_vendor_health", start, err) }(time.Now())

	row := vendorHealthRow{
		VendorID:      h.VendorID,
		SLAExpired:    h.SLAExpired,
		LastCheckedAt: h.LastCheckedAt.UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vendor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sla_expired", "last_checked_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save vendor health: %w", err)
	}
	return nil
}

// Stats implements Store.Stats.
func (s *GormStore) Stats(ctx context.Context) (_ model.Stats, err error) {
	defer func(start time.Time) { observe("stats", start, err) }(time.Now())

	var st model.Stats
	db := s.db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&st.Projects, db.Model(&projectRow{})},
		{&st.ActiveProjects, db.Model(&projectRow{}).Where("status = ?", string(model.ProjectActive))},
		{&st.Vendors, db.Model(&vendorRow{})},
		{&st.ActiveVendors, db.Model(&vendorRow{}).Where("is_active = ?", true)},
		{&st.Matches, db.Model(&matchRow{})},
		{&st.FlaggedVendors, db.Model(&vendorHealthRow{}).Where("sla_expired = ?", true)},
	}
	for _, c := range counts {
		if err = c.query.Count(c.dst).Error; err != nil {
			return model.Stats{}, fmt.Errorf("count: %w", err)
		}
	}
	return st, nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// upsertByID inserts row, or updates cols (plus updated_at) when its id exists.
func upsertByID(tx *gorm.DB, row any, cols ...string) error {
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(append(cols, "updated_at")),
	}).Create(row).Error
}

// gormWriter routes gorm's warnings and slow-query lines to the service logger.
type gormWriter struct {
	log logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(context.Background(), fmt.Sprintf(format, args...))
}

func (r matchRow) toModel() model.Match {
	return model.Match{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		VendorID:  r.VendorID,
		Score:     r.Score.InexactFloat64(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toDecimal(score float64) decimal.Decimal {
	return decimal.NewFromFloat(score).Round(2)
}

func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rowsAffected(op string, res *gorm.DB) error {
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
