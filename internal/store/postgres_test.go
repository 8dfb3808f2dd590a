package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoppulse/registry-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPostgresStore_UpsertEntity_Written(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	e := &model.Entity{
		UEN:              "201912345A",
		Name:             "ACME PTE LTD",
		Status:           "Live",
		RegistrationDate: date("2019-05-01"),
		PrimarySSIC:      "62010",
		PostalCode:       "018956",
	}

	mock.ExpectExec(`INSERT INTO acra_entities`).
		WithArgs(e.Values()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	written, err := s.UpsertEntity(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertEntity_MergeRejected(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Older registration date loses the conflict WHERE clause: zero rows affected.
	e := &model.Entity{UEN: "201912345A", RegistrationDate: date("2010-01-01")}

	mock.ExpectExec(`INSERT INTO acra_entities`).
		WithArgs(e.Values()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	written, err := s.UpsertEntity(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertEntity_MissingUEN(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	written, err := s.UpsertEntity(context.Background(), &model.Entity{Name: "NO ID"})
	require.NoError(t, err)
	assert.False(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UnresolvedPostalCodes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"postal_code"}).
		AddRow("018956").
		AddRow("238801")
	mock.ExpectQuery(`SELECT DISTINCT postal_code FROM acra_entities`).
		WillReturnRows(rows)

	codes, err := s.UnresolvedPostalCodes(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"018956", "238801"}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UnresolvedPostalCodes_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT postal_code FROM acra_entities`).
		WillReturnRows(pgxmock.NewRows([]string{"postal_code"}))

	codes, err := s.UnresolvedPostalCodes(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertGeoResolutions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	resolutions := []model.GeoResolution{
		{PostalCode: "018956", Latitude: 1.2801, Longitude: 103.8509, SubzoneID: "DTSZ01", PlanningAreaID: "DT", ResolvedAt: now},
		{PostalCode: "238801", Latitude: 1.3039, Longitude: 103.8318, ResolvedAt: now},
	}

	mock.ExpectExec(`INSERT INTO "dim_postal_geo"`).
		WithArgs(
			"018956", 1.2801, 103.8509, "DTSZ01", "DT", now,
			"238801", 1.3039, 103.8318, nil, nil, now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := s.InsertGeoResolutions(context.Background(), resolutions)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertGeoResolutions_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.InsertGeoResolutions(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	for range schemaStatements {
		mock.ExpectExec(`CREATE (TABLE|INDEX)`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RebuildEnriched(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`TRUNCATE acra_entities_enriched`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectExec(`INSERT INTO acra_entities_enriched`).
		WillReturnResult(pgxmock.NewResult("INSERT", 42))

	n, err := s.RebuildEnriched(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefreshEnrichedMonths(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM acra_entities_enriched WHERE registration_month = \$1`).
		WithArgs(201905).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO acra_entities_enriched`).
		WithArgs(201905).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))

	mock.ExpectExec(`DELETE FROM acra_entities_enriched WHERE registration_month IS NULL`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO acra_entities_enriched`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.RefreshEnrichedMonths(context.Background(), []int{201905, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StagedMonths(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT CAST`).
		WillReturnRows(pgxmock.NewRows([]string{"month"}).AddRow(201905).AddRow(202001))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM acra_entities WHERE registration_date IS NULL`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	months, err := s.StagedMonths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{201905, 202001, 0}, months)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Runs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO pipeline_runs`).
		WithArgs(pgxmock.AnyArg(), "fetch", pgxmock.AnyArg(), RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE pipeline_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), RunSucceeded, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	runID, err := s.StartRun(context.Background(), "fetch")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	err = s.FinishRun(context.Background(), runID, RunSucceeded, map[string]int{"records": 10})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
