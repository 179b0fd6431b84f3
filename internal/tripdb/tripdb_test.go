package tripdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bikepass-cli/internal/model"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := Open(context.Background(),
		[]string{"ride_id", "rideable_type", "duration_min"},
		[][]string{
			{"r1", "classic_bike", "12.5"},
			{"r2", "electric_bike", "8"},
			{"r3", "classic_bike", "40"},
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestOpenAndQuery(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	rows, err := eng.Query(context.Background(), `SELECT COUNT(*) AS n FROM trips`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(3), rows[0]["n"])
}

func TestOpenDedupesDuplicateHeaders(t *testing.T) {
	t.Parallel()

	eng, err := Open(context.Background(),
		[]string{"duration_min", "Duration_Min", "duration_min", "duration_min_1"},
		[][]string{{"12.5", "8", "40", "3"}},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	// First occurrence keeps its name; later collisions get numeric suffixes
	// that steer clear of already-taken names, case-insensitively.
	assert.Equal(t,
		[]string{"duration_min", "Duration_Min_1", "duration_min_2", "duration_min_1_1"},
		eng.Columns(),
	)

	rows, err := eng.Query(context.Background(),
		`SELECT "duration_min", "duration_min_2" FROM trips`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "12.5", rows[0]["duration_min"])
	assert.Equal(t, "40", rows[0]["duration_min_2"])
}

func TestQueryRejectsWrites(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	tests := []struct {
		name  string
		query string
	}{
		{"delete", `DELETE FROM trips`},
		{"insert", `INSERT INTO trips VALUES ('x', 'y', '1')`},
		{"update", `UPDATE trips SET ride_id = 'x'`},
		{"drop", `DROP TABLE trips`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := eng.Query(context.Background(), tt.query)
			require.Error(t, err)
			var qErr *model.QueryError
			assert.ErrorAs(t, err, &qErr)
		})
	}
}

func TestQueryAllowsReadPrefixes(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	for _, query := range []string{
		`SELECT ride_id FROM trips LIMIT 1`,
		`WITH c AS (SELECT COUNT(*) AS n FROM trips) SELECT n FROM c`,
		`  select ride_id from trips limit 1`,
	} {
		_, err := eng.Query(context.Background(), query)
		assert.NoError(t, err, query)
	}
}

func TestQueryNormalizesValues(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	rows, err := eng.Query(context.Background(),
		`SELECT ride_id, CAST(duration_min AS REAL) AS mins, COUNT(*) AS n FROM trips GROUP BY ride_id, duration_min ORDER BY ride_id`)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "r1", rows[0]["ride_id"])
	assert.Equal(t, 12.5, rows[0]["mins"])
	assert.Equal(t, float64(1), rows[0]["n"])
}

func TestColumns(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)
	assert.Equal(t, []string{"ride_id", "rideable_type", "duration_min"}, eng.Columns())
}

func TestOpenRejectsEmptyHeader(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()
	eng, err := Open(context.Background(), []string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	_, err = eng.Query(context.Background(), `SELECT * FROM trips`)
	assert.Error(t, err)
}

func TestRaggedRowsPadded(t *testing.T) {
	t.Parallel()
	eng, err := Open(context.Background(),
		[]string{"a", "b"},
		[][]string{
			{"1"},
			{"2", "3", "extra"},
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	rows, err := eng.Query(context.Background(), `SELECT a, b FROM trips ORDER BY a`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0]["b"])
	assert.Equal(t, "3", rows[1]["b"])
}
