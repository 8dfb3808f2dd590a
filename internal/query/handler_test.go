package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewHandler(NewService(mock)), mock
}

func doGet(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGet(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_Overview(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT`).WillReturnRows(
		pgxmock.NewRows([]string{"total", "geo", "subzone", "areas"}).
			AddRow(int64(1000), int64(800), int64(750), int64(40)))

	rec := doGet(t, h, "/api/overview")
	require.Equal(t, http.StatusOK, rec.Code)

	var o Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, int64(1000), o.TotalEntities)
	assert.Equal(t, int64(800), o.WithGeo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Trends_WithFilters(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT registration_month, COUNT\(\*\) FROM acra_entities_enriched`).
		WithArgs("DT", 202101, 202112).
		WillReturnRows(pgxmock.NewRows([]string{"month", "count"}).
			AddRow(202103, int64(12)).
			AddRow(202104, int64(9)))

	rec := doGet(t, h, "/api/trends?planning_area=DT&from=202101&to=202112")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []TrendPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	assert.Equal(t, 202103, points[0].Month)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Rankings_BadDimension(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGet(t, h, "/api/rankings?by=bogus")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_Rankings_SSIC(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT e.primary_ssic`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "label", "count"}).
			AddRow("62010", "Software development", int64(500)))

	rec := doGet(t, h, "/api/rankings?by=ssic&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var ranks []RankRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranks))
	require.Len(t, ranks, 1)
	assert.Equal(t, "Software development", ranks[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Search_RequiresQuery(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGet(t, h, "/api/entities")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Entity_NotFound(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT uen`).
		WithArgs("000000000X").
		WillReturnRows(pgxmock.NewRows([]string{
			"uen", "name", "status", "registration_date", "primary_ssic",
			"postal_code", "latitude", "longitude", "subzone_id", "planning_area_id",
		}))

	rec := doGet(t, h, "/api/entities/000000000X")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Ask_DispatchesOverview(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT`).WillReturnRows(
		pgxmock.NewRows([]string{"total", "geo", "subzone", "areas"}).
			AddRow(int64(10), int64(8), int64(7), int64(2)))

	rec := doGet(t, h, "/api/ask?q=how+many+companies")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Intent string `json:"intent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, KindOverview, body.Intent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
