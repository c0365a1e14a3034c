package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"influnest/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

const campaignColumns = `
	influencer, created_at, brand, name, description, instagram_username,
	amount_total, amount_paid,
	target_likes, target_comments, target_views, target_shares,
	current_likes, current_comments, current_views, current_shares,
	deadline_ts, status, posts, version
`

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

// Pool exposes the connection pool so the ledger can share it
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Migrate applies the embedded schema
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("🗄️  Database schema applied")
	return nil
}

// CreateCampaign inserts a new campaign record
func (r *PostgresRepository) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	postsJSON, err := json.Marshal(nonNilPosts(campaign.Posts))
	if err != nil {
		return fmt.Errorf("failed to marshal posts: %w", err)
	}

	query := `INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = r.pool.Exec(ctx, query,
		string(campaign.Influencer),
		campaign.CreatedAt,
		string(campaign.Brand),
		string(campaign.Name),
		string(campaign.Description),
		string(campaign.InstagramUsername),
		NumericFromUint64(campaign.AmountTotal),
		NumericFromUint64(campaign.AmountPaid),
		NumericFromUint64(campaign.Target.Likes),
		NumericFromUint64(campaign.Target.Comments),
		NumericFromUint64(campaign.Target.Views),
		NumericFromUint64(campaign.Target.Shares),
		NumericFromUint64(campaign.Current.Likes),
		NumericFromUint64(campaign.Current.Comments),
		NumericFromUint64(campaign.Current.Views),
		NumericFromUint64(campaign.Current.Shares),
		campaign.DeadlineTS,
		string(campaign.Status),
		postsJSON,
		int64(campaign.Version),
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return models.ErrCampaignExists
	}
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

// GetCampaign retrieves a campaign by key
func (r *PostgresRepository) GetCampaign(ctx context.Context, key models.CampaignKey) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE influencer = $1 AND created_at = $2`

	campaign, err := scanCampaign(r.pool.QueryRow(ctx, query, string(key.Influencer), key.CreatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// ListCampaigns lists campaigns matching the filter, newest first
func (r *PostgresRepository) ListCampaigns(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, error) {
	where, args := filterClause(filter)

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		` ORDER BY created_at DESC, influencer ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

// CountCampaigns counts campaigns matching the filter
func (r *PostgresRepository) CountCampaigns(ctx context.Context, filter models.CampaignFilter) (int, error) {
	where, args := filterClause(filter)

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	return count, nil
}

// UpdateCampaign locks the row, applies mutate and writes the result in the
// same transaction. The transaction travels in the context handed to mutate.
func (r *PostgresRepository) UpdateCampaign(ctx context.Context, key models.CampaignKey, mutate CampaignMutation) (*models.Campaign, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + campaignColumns + ` FROM campaigns
		WHERE influencer = $1 AND created_at = $2 FOR UPDATE`

	campaign, err := scanCampaign(tx.QueryRow(ctx, query, string(key.Influencer), key.CreatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock campaign: %w", err)
	}

	if err := mutate(WithTx(ctx, tx), campaign); err != nil {
		return nil, err
	}

	postsJSON, err := json.Marshal(nonNilPosts(campaign.Posts))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal posts: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE campaigns SET
			brand = $3, amount_paid = $4,
			current_likes = $5, current_comments = $6, current_views = $7, current_shares = $8,
			status = $9, posts = $10, version = $11, updated_at = NOW()
		WHERE influencer = $1 AND created_at = $2
	`,
		string(key.Influencer),
		key.CreatedAt,
		string(campaign.Brand),
		NumericFromUint64(campaign.AmountPaid),
		NumericFromUint64(campaign.Current.Likes),
		NumericFromUint64(campaign.Current.Comments),
		NumericFromUint64(campaign.Current.Views),
		NumericFromUint64(campaign.Current.Shares),
		string(campaign.Status),
		postsJSON,
		int64(campaign.Version+1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	campaign.Version++
	return campaign, nil
}

// GetOracleConfig reads the registry record
func (r *PostgresRepository) GetOracleConfig(ctx context.Context) (*models.OracleConfig, error) {
	var cfg models.OracleConfig
	var admin, oracle string

	err := r.pool.QueryRow(ctx, `SELECT administrator, oracle, updated_at FROM oracle_config WHERE id = 1`).
		Scan(&admin, &oracle, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOracleNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oracle config: %w", err)
	}

	cfg.Administrator = models.Identity(admin)
	cfg.Oracle = models.Identity(oracle)
	return &cfg, nil
}

// InitOracleConfig creates the registry record once
func (r *PostgresRepository) InitOracleConfig(ctx context.Context, cfg *models.OracleConfig) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO oracle_config (id, administrator, oracle, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, string(cfg.Administrator), string(cfg.Oracle), cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to init oracle config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOracleAlreadyInitialized
	}
	return nil
}

// UpdateOracleConfig locks the registry record and applies mutate
func (r *PostgresRepository) UpdateOracleConfig(ctx context.Context, mutate OracleMutation) (*models.OracleConfig, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cfg models.OracleConfig
	var admin, oracle string
	err = tx.QueryRow(ctx, `SELECT administrator, oracle, updated_at FROM oracle_config WHERE id = 1 FOR UPDATE`).
		Scan(&admin, &oracle, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOracleNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock oracle config: %w", err)
	}
	cfg.Administrator = models.Identity(admin)
	cfg.Oracle = models.Identity(oracle)

	if err := mutate(&cfg); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE oracle_config SET administrator = $1, oracle = $2, updated_at = $3 WHERE id = 1`,
		string(cfg.Administrator), string(cfg.Oracle), cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update oracle config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &cfg, nil
}

// SaveCampaignEvent appends an event to the audit trail
func (r *PostgresRepository) SaveCampaignEvent(ctx context.Context, event *models.CampaignEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := `
		INSERT INTO campaign_events (
			event_id, event_type, campaign_influencer, campaign_created_at,
			actor, amount, data, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		event.EventID,
		string(event.EventType),
		string(event.Campaign.Influencer),
		event.Campaign.CreatedAt,
		string(event.Actor),
		NumericFromUint64(event.Amount),
		dataJSON,
		event.OccurredAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

// ListCampaignEvents lists events for a campaign in occurrence order
func (r *PostgresRepository) ListCampaignEvents(ctx context.Context, key models.CampaignKey, limit, offset int) ([]models.CampaignEvent, error) {
	query := `
		SELECT event_id::text, event_type, actor, amount, data, occurred_at
		FROM campaign_events
		WHERE campaign_influencer = $1 AND campaign_created_at = $2
		ORDER BY id ASC
		LIMIT $3 OFFSET $4
	`

	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.pool.Query(ctx, query, string(key.Influencer), key.CreatedAt, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.CampaignEvent
	for rows.Next() {
		var event models.CampaignEvent
		var eventType, actor string
		var amount Numeric
		var dataJSON []byte

		err := rows.Scan(
			&event.EventID,
			&eventType,
			&actor,
			&amount,
			&dataJSON,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.EventType = models.EventType(eventType)
		event.Campaign = key
		event.Actor = models.Identity(actor)
		if event.Amount, err = amount.Uint64(); err != nil {
			return nil, fmt.Errorf("failed to decode event amount: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal data: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Ping checks the database connection
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func filterClause(filter models.CampaignFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Influencer != nil {
		args = append(args, string(*filter.Influencer))
		conds = append(conds, fmt.Sprintf("influencer = $%d", len(args)))
	}
	if filter.Brand != nil {
		args = append(args, string(*filter.Brand))
		conds = append(conds, fmt.Sprintf("brand = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	var influencer, brand, name, description, handle, status string
	var numerics [10]Numeric
	var postsJSON []byte
	var version int64

	err := row.Scan(
		&influencer,
		&c.CreatedAt,
		&brand,
		&name,
		&description,
		&handle,
		&numerics[0], &numerics[1],
		&numerics[2], &numerics[3], &numerics[4], &numerics[5],
		&numerics[6], &numerics[7], &numerics[8], &numerics[9],
		&c.DeadlineTS,
		&status,
		&postsJSON,
		&version,
	)
	if err != nil {
		return nil, err
	}
	c.Version = uint64(version)

	targets := []*uint64{
		&c.AmountTotal, &c.AmountPaid,
		&c.Target.Likes, &c.Target.Comments, &c.Target.Views, &c.Target.Shares,
		&c.Current.Likes, &c.Current.Comments, &c.Current.Views, &c.Current.Shares,
	}
	for i, dst := range targets {
		if *dst, err = numerics[i].Uint64(); err != nil {
			return nil, err
		}
	}

	c.Influencer = models.Identity(influencer)
	c.Brand = models.Identity(brand)
	c.Name = models.CampaignName(name)
	c.Description = models.Description(description)
	c.InstagramUsername = models.InstagramHandle(handle)
	c.Status = models.CampaignStatus(status)

	if err := json.Unmarshal(postsJSON, &c.Posts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal posts: %w", err)
	}
	c.Posts = nonNilPosts(c.Posts)

	return &c, nil
}

func nonNilPosts(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	return posts
}
