package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"freight-tracker/internal/features/shipments/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shipmentColumns = `
	id, embarcador_id, nota_fiscal,
	origem_cidade, origem_uf, COALESCE(origem_endereco, ''), origem_lat, origem_lng,
	destino_cidade, destino_uf, COALESCE(destino_endereco, ''), destino_lat, destino_lng,
	toneladas, COALESCE(descricao, ''), data_carregamento, prazo_entrega, data_entrega_real,
	COALESCE(motorista_nome, ''), COALESCE(motorista_telefone, ''), COALESCE(placa_veiculo, ''),
	velocidade_media_estimada, distancia_total_km,
	status, status_prazo, ativo, COALESCE(token_rastreamento, ''), created_at`

// PostgresStore wires the shipment repository ports to a pgx connection pool.
// Like MemoryStore it hands out one facet per port over the shared pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects the pool and verifies it with a ping.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// Shipments returns the ShipmentRepository facet.
func (s *PostgresStore) Shipments() *PostgresShipmentRepository {
	return &PostgresShipmentRepository{db: s.db}
}

// Positions returns the PositionRepository facet.
func (s *PostgresStore) Positions() *PostgresPositionRepository {
	return &PostgresPositionRepository{db: s.db}
}

// History returns the HistoryRepository facet.
func (s *PostgresStore) History() *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: s.db}
}

// Alerts returns the AlertRepository facet.
func (s *PostgresStore) Alerts() *PostgresAlertRepository {
	return &PostgresAlertRepository{db: s.db}
}

// PostgresShipmentRepository implements ports.ShipmentRepository on pgx.
type PostgresShipmentRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresShipmentRepository) Insert(ctx context.Context, s *domain.Shipment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cargas (
			id, embarcador_id, nota_fiscal,
			origem_cidade, origem_uf, origem_endereco, origem_lat, origem_lng,
			destino_cidade, destino_uf, destino_endereco, destino_lat, destino_lng,
			toneladas, descricao, data_carregamento, prazo_entrega,
			motorista_nome, motorista_telefone, placa_veiculo,
			velocidade_media_estimada, distancia_total_km,
			status, status_prazo, ativo, token_rastreamento, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)`,
		s.ID, s.ShipperID, s.Invoice,
		s.OriginCity, s.OriginState, s.OriginAddress, s.OriginLat, s.OriginLng,
		s.DestinationCity, s.DestinationState, s.DestinationAddress, s.DestinationLat, s.DestinationLng,
		s.WeightTons, s.Description, s.DepartureAt, s.ArrivalDeadline,
		s.DriverName, s.DriverPhone, s.VehiclePlate,
		s.AvgSpeedKmh, s.TotalDistanceKm,
		string(s.Status), string(s.DeadlineStatus), s.Active, s.TrackingToken, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert carga: %w", err)
	}
	return nil
}

func (r *PostgresShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM cargas WHERE id = $1 AND ativo`, id)

	s, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query carga: %w", err)
	}
	return s, nil
}

func (r *PostgresShipmentRepository) GetByToken(ctx context.Context, token string) (*domain.Shipment, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM cargas WHERE token_rastreamento = $1 AND ativo`, token)

	s, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("query carga by token: %w", err)
	}
	return s, nil
}

func (r *PostgresShipmentRepository) List(ctx context.Context, shipperID string, filter domain.Filter) ([]*domain.Shipment, error) {
	where, args := buildListQuery(shipperID, filter)

	rows, err := r.db.Query(ctx,
		`SELECT `+shipmentColumns+` FROM cargas `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query cargas: %w", err)
	}
	defer rows.Close()

	var out []*domain.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan carga: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cargas: %w", err)
	}
	return out, nil
}

func (r *PostgresShipmentRepository) Update(ctx context.Context, s *domain.Shipment) error {
	// Updates reach soft-deleted rows: exclusion itself is an update.
	tag, err := r.db.Exec(ctx, `
		UPDATE cargas SET
			origem_endereco = $2, destino_endereco = $3,
			toneladas = $4, descricao = $5,
			data_carregamento = $6, prazo_entrega = $7, data_entrega_real = $8,
			motorista_nome = $9, motorista_telefone = $10, placa_veiculo = $11,
			velocidade_media_estimada = $12, distancia_total_km = $13,
			status = $14, status_prazo = $15, ativo = $16, token_rastreamento = $17
		WHERE id = $1`,
		s.ID,
		s.OriginAddress, s.DestinationAddress,
		s.WeightTons, s.Description,
		s.DepartureAt, s.ArrivalDeadline, s.DeliveredAt,
		s.DriverName, s.DriverPhone, s.VehiclePlate,
		s.AvgSpeedKmh, s.TotalDistanceKm,
		string(s.Status), string(s.DeadlineStatus), s.Active, s.TrackingToken,
	)
	if err != nil {
		return fmt.Errorf("update carga: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, s.ID)
	}
	return nil
}

// buildListQuery composes the WHERE clause for List from the optional shipper
// scope and the filter. Positional args are numbered as they are appended.
func buildListQuery(shipperID string, f domain.Filter) (string, []any) {
	conds := []string{"ativo"}
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if shipperID != "" {
		add("embarcador_id = $%d", shipperID)
	}
	if len(f.Statuses) > 0 {
		values := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			values[i] = string(s)
		}
		add("status = ANY($%d)", values)
	}
	if len(f.DeadlineStatuses) > 0 {
		values := make([]string, len(f.DeadlineStatuses))
		for i, s := range f.DeadlineStatuses {
			values[i] = string(s)
		}
		add("status_prazo = ANY($%d)", values)
	}
	if f.Invoice != "" {
		add("nota_fiscal ILIKE '%%' || $%d || '%%'", f.Invoice)
	}
	if f.OriginState != "" {
		add("origem_uf = $%d", f.OriginState)
	}
	if f.DestinationState != "" {
		add("destino_uf = $%d", f.DestinationState)
	}
	if f.DriverName != "" {
		add("motorista_nome ILIKE '%%' || $%d || '%%'", f.DriverName)
	}
	if f.VehiclePlate != "" {
		add("placa_veiculo ILIKE '%%' || $%d || '%%'", f.VehiclePlate)
	}
	if f.DepartureFrom != nil {
		add("data_carregamento >= $%d", *f.DepartureFrom)
	}
	if f.DepartureTo != nil {
		add("data_carregamento <= $%d", *f.DepartureTo)
	}
	if f.DeadlineFrom != nil {
		add("prazo_entrega >= $%d", *f.DeadlineFrom)
	}
	if f.DeadlineTo != nil {
		add("prazo_entrega <= $%d", *f.DeadlineTo)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanShipment(row pgx.Row) (*domain.Shipment, error) {
	var (
		s             domain.Shipment
		status, prazo string
		deliveredAt   *time.Time
	)
	err := row.Scan(
		&s.ID, &s.ShipperID, &s.Invoice,
		&s.OriginCity, &s.OriginState, &s.OriginAddress, &s.OriginLat, &s.OriginLng,
		&s.DestinationCity, &s.DestinationState, &s.DestinationAddress, &s.DestinationLat, &s.DestinationLng,
		&s.WeightTons, &s.Description, &s.DepartureAt, &s.ArrivalDeadline, &deliveredAt,
		&s.DriverName, &s.DriverPhone, &s.VehiclePlate,
		&s.AvgSpeedKmh, &s.TotalDistanceKm,
		&status, &prazo, &s.Active, &s.TrackingToken, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.LifecycleStatus(status)
	s.DeadlineStatus = domain.DeadlineStatus(prazo)
	s.DeliveredAt = deliveredAt
	return &s, nil
}

// PostgresPositionRepository implements ports.PositionRepository on pgx.
type PostgresPositionRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresPositionRepository) Append(ctx context.Context, fix *domain.PositionFix) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO posicoes_gps (
			id, carga_id, latitude, longitude, velocidade, precisao_metros, captured_at, origem
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		fix.ID, fix.ShipmentID, fix.Latitude, fix.Longitude,
		fix.SpeedKmh, fix.AccuracyMeters, fix.Timestamp, fix.Source,
	)
	if err != nil {
		return fmt.Errorf("insert posicao: %w", err)
	}
	return nil
}

// Latest orders on captured_at, not insertion order, so delayed writes never
// shadow a newer fix.
func (r *PostgresPositionRepository) Latest(ctx context.Context, shipmentID string) (*domain.PositionFix, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, carga_id, latitude, longitude, velocidade, precisao_metros, captured_at, origem
		FROM posicoes_gps
		WHERE carga_id = $1
		ORDER BY captured_at DESC
		LIMIT 1`, shipmentID)

	fix, err := scanFix(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest posicao: %w", err)
	}
	return fix, nil
}

func (r *PostgresPositionRepository) History(ctx context.Context, shipmentID string, from, to time.Time) ([]*domain.PositionFix, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, carga_id, latitude, longitude, velocidade, precisao_metros, captured_at, origem
		FROM posicoes_gps
		WHERE carga_id = $1 AND captured_at BETWEEN $2 AND $3
		ORDER BY captured_at DESC`, shipmentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query posicoes: %w", err)
	}
	defer rows.Close()

	var out []*domain.PositionFix
	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posicao: %w", err)
		}
		out = append(out, fix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posicoes: %w", err)
	}
	return out, nil
}

func scanFix(row pgx.Row) (*domain.PositionFix, error) {
	var f domain.PositionFix
	err := row.Scan(
		&f.ID, &f.ShipmentID, &f.Latitude, &f.Longitude,
		&f.SpeedKmh, &f.AccuracyMeters, &f.Timestamp, &f.Source,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// PostgresHistoryRepository implements ports.HistoryRepository on pgx.
type PostgresHistoryRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	var previous *string
	if entry.PreviousStatus != nil {
		v := string(*entry.PreviousStatus)
		previous = &v
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO historico_status (
			id, carga_id, status_anterior, status_novo, observacao, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ShipmentID, previous, string(entry.NewStatus), entry.Note, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert historico: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepository) ByShipment(ctx context.Context, shipmentID string) ([]*domain.StatusHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, carga_id, status_anterior, status_novo, COALESCE(observacao, ''), created_at
		FROM historico_status
		WHERE carga_id = $1
		ORDER BY created_at ASC`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query historico: %w", err)
	}
	defer rows.Close()

	var out []*domain.StatusHistoryEntry
	for rows.Next() {
		var (
			e        domain.StatusHistoryEntry
			previous *string
			status   string
		)
		if err := rows.Scan(&e.ID, &e.ShipmentID, &previous, &status, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan historico: %w", err)
		}
		if previous != nil {
			v := domain.LifecycleStatus(*previous)
			e.PreviousStatus = &v
		}
		e.NewStatus = domain.LifecycleStatus(status)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate historico: %w", err)
	}
	return out, nil
}

// PostgresAlertRepository implements ports.AlertRepository on pgx.
type PostgresAlertRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresAlertRepository) Insert(ctx context.Context, alert *domain.Alert) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO alertas (
			id, carga_id, tipo, destinatario, mensagem, enviado, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		alert.ID, alert.ShipmentID, alert.Type, alert.Recipient,
		alert.Message, alert.Sent, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alerta: %w", err)
	}
	return nil
}
