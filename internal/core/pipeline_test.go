package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clinicimport/internal/core"
	"github.com/JonMunkholm/clinicimport/internal/core/tables"
	"github.com/JonMunkholm/clinicimport/internal/store/memory"
)

// countingStore records how often each capability is used.
type countingStore struct {
	*memory.Store
	queries int
	inserts int
}

func (c *countingStore) QueryExisting(ctx context.Context, kind core.Kind, fields []string) ([]core.Record, error) {
	c.queries++
	return c.Store.QueryExisting(ctx, kind, fields)
}

func (c *countingStore) InsertOne(ctx context.Context, kind core.Kind, rec core.Record) error {
	c.inserts++
	return c.Store.InsertOne(ctx, kind, rec)
}

func newCounting(opts ...memory.Option) *countingStore {
	return &countingStore{Store: memory.New(opts...)}
}

func runPersons(t *testing.T, store core.Store, text string) (*core.ImportResult, error) {
	t.Helper()
	return core.NewPipeline(tables.Persons(), store, nil, nil).Run(context.Background(), text, nil)
}

func TestPipeline_ConcreteScenario(t *testing.T) {
	text := "prenom,nom,email,telephone\n" +
		"Jean,Tremblay,jean@x.com,514-555-1234\n" +
		"Marie,,marie@x.com,450-555-9999\n"

	store := memory.New()
	result, err := runPersons(t, store, text)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 0, result.Duplicates)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, core.RowError{
		Row:     3,
		Message: "Prénom et nom sont requis",
		Data:    core.RawRow{"Marie", "", "marie@x.com", "450-555-9999"},
		Kind:    core.RowValidation,
	}, result.Errors[0])

	stored := store.Records(core.KindPersons)
	require.Len(t, stored, 1)
	assert.Equal(t, "Jean", stored[0]["first_name"])
	assert.Equal(t, "Tremblay", stored[0]["last_name"])
	assert.Equal(t, "jean@x.com", stored[0]["email"])
	assert.Equal(t, "514-555-1234", stored[0]["phone"])
}

func TestPipeline_CountsAddUp(t *testing.T) {
	text := "Prénom,Nom,Email,Date de naissance\n" +
		"Ana,Roy,ana@x.io,1990-01-02\n" +
		"\n" +
		"Ana,Roy,other@x.io,\n" + // duplicate by name
		"Luc,Caron,not-an-email,\n" + // invalid email
		"   ,  ,  ,  \n" + // blank, dropped
		"Zoé,Côté,zoe@x.io,31/12/1999\n" +
		"Max,Bé,max@x.io,2999-01-01\n" // future birth date

	result, err := runPersons(t, memory.New(), text)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, result.TotalRows, result.Success+result.Duplicates+len(result.Errors))
	assert.Equal(t, result.TotalRows, result.Processed())
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Duplicates)
	assert.Len(t, result.Errors, 2)
}

func TestPipeline_QuotedRoundTrip(t *testing.T) {
	text := "Prénom,Nom,Notes\n" + `Ana,Roy,"a, b""c"` + "\n"

	store := memory.New()
	result, err := runPersons(t, store, text)
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)

	assert.Equal(t, `a, b"c`, store.Records(core.KindPersons)[0]["notes"])
}

func TestPipeline_HeaderOnlyIsStructural(t *testing.T) {
	store := newCounting()
	_, err := runPersons(t, store, "Prénom,Nom,Email\n")

	var structural *core.StructuralError
	require.ErrorAs(t, err, &structural)
	var importErr *core.ImportError
	require.ErrorAs(t, err, &importErr)
	assert.True(t, strings.HasPrefix(err.Error(), core.FatalPrefix))

	assert.Zero(t, store.queries, "no preload before structural check")
	assert.Zero(t, store.inserts)
}

func TestPipeline_MissingLastNameIsSchemaError(t *testing.T) {
	store := newCounting()
	_, err := runPersons(t, store, "prenom,email\nJean,jean@x.com\n")

	var schema *core.SchemaError
	require.ErrorAs(t, err, &schema)
	assert.Equal(t, []string{"Nom"}, schema.Missing)
	assert.Contains(t, err.Error(), "Nom")

	assert.Zero(t, store.queries, "schema is checked before the preload")
	assert.Zero(t, store.inserts, "insert must never be invoked")
}

func TestPipeline_ReimportIsAllDuplicates(t *testing.T) {
	text := "Prénom,Nom,Email\n" +
		"Ana,Roy,ana@x.io\n" +
		"Luc,Caron,\n" +
		"Zoé,Côté,ZOE@x.io\n" +
		"Bad,Row,nope\n"

	store := memory.New()

	first, err := runPersons(t, store, text)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Success)
	assert.Len(t, first.Errors, 1)

	second, err := runPersons(t, store, text)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Success)
	assert.Equal(t, first.Success, second.Duplicates)
	assert.Len(t, second.Errors, 1)
	assert.Len(t, store.Records(core.KindPersons), 3)
}

func TestPipeline_IntraFileDedup(t *testing.T) {
	text := "Prénom,Nom,Email\n" +
		"Ana,Roy,ana@x.io\n" +
		"Anne,Leduc,ANA@x.io\n" + // same email, different name
		"ana,roy,\n" // same name, different case

	store := newCounting()
	result, err := runPersons(t, store, text)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 1, store.inserts)
}

func TestPipeline_InvalidEmailRowNumber(t *testing.T) {
	text := "Prénom,Nom,Email\n" +
		"Ana,Roy,ana@x.io\n" +
		"Luc,Caron,luc-at-x.io\n" +
		"Zoé,Côté,zoe@x.io\n"

	result, err := runPersons(t, memory.New(), text)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "Email invalide: luc-at-x.io", result.Errors[0].Message)
	assert.Equal(t, core.RowValidation, result.Errors[0].Kind)
	assert.Equal(t, 2, result.Success, "rows after the invalid one still import")
}

func TestPipeline_RowNumbersSkipBlankLines(t *testing.T) {
	// Blank lines are dropped before numbering, so the bad row is data row 2.
	text := "Prénom,Nom,Email\n\nAna,Roy,ana@x.io\n\n\nLuc,Caron,bad\n"

	result, err := runPersons(t, memory.New(), text)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].Row)
}

func TestPipeline_ProgressOncePerRow(t *testing.T) {
	text := "Prénom,Nom\nA,B\nC,\nA,B\nD,E\n"

	var calls [][2]int
	progress := func(current, total int) {
		calls = append(calls, [2]int{current, total})
	}

	_, err := core.NewPipeline(tables.Persons(), memory.New(), nil, nil).Run(context.Background(), text, progress)
	require.NoError(t, err)

	require.Len(t, calls, 4)
	for i, c := range calls {
		assert.Equal(t, i+1, c[0], "current must increase by one")
		assert.Equal(t, 4, c[1])
	}
}

func TestPipeline_HeaderVariants(t *testing.T) {
	for _, header := range []string{"prenom", "Prénom ", "PRENOM", "pre_nom"} {
		t.Run(header, func(t *testing.T) {
			text := header + ",Nom\nAna,Roy\n"
			store := memory.New()

			result, err := runPersons(t, store, text)
			require.NoError(t, err)
			require.Equal(t, 1, result.Success)
			assert.Equal(t, "Ana", store.Records(core.KindPersons)[0]["first_name"])
		})
	}
}

func TestPipeline_PersistenceErrorsAreRowScoped(t *testing.T) {
	boom := errors.New("insert rejected")
	store := memory.New(memory.WithInsertHook(func(_ core.Kind, rec core.Record) error {
		if rec["first_name"] == "Luc" {
			return boom
		}
		return nil
	}))

	text := "Prénom,Nom\nAna,Roy\nLuc,Caron\nZoé,Côté\n"
	result, err := runPersons(t, store, text)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, core.RowError{
		Row:     3,
		Message: "insert rejected",
		Data:    core.RawRow{"Luc", "Caron"},
		Kind:    core.RowPersistence,
	}, result.Errors[0])
}

func TestPipeline_StoredDuplicateEmailRejected(t *testing.T) {
	// The unique index catches what the preload could not see.
	store := memory.New(memory.WithUniqueEmail(core.KindPersons))
	pipeline := core.NewPipeline(tables.Persons(), store, nil, nil)

	_, err := pipeline.Run(context.Background(), "Prénom,Nom,Email\nAna,Roy,ana@x.io\n", nil)
	require.NoError(t, err)

	// Same email under a new name arrives through a path that skips dedup.
	noDedup := tables.Persons()
	noDedup.Dedup = false
	result, err := core.NewPipeline(noDedup, store, nil, nil).Run(context.Background(), "Prénom,Nom,Email\nAnne,Leduc,ana@x.io\n", nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, core.RowPersistence, result.Errors[0].Kind)
	assert.Equal(t, "DB001", core.MapError(errors.New(result.Errors[0].Message)).Code)
}

func TestPipeline_PreloadFailureIsFatal(t *testing.T) {
	store := memory.New(memory.WithQueryError(errors.New("connection refused")))

	_, err := runPersons(t, store, "Prénom,Nom\nAna,Roy\n")

	var storageErr *core.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Empty(t, store.Records(core.KindPersons))
}

func TestPipeline_CancelledContextFailsRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Events do not preload, so the run reaches the row loop.
	text := "Nom,Email,Téléphone,Motif\nAna Roy,ana@x.io,5145550134,Suivi\n"
	result, err := core.NewPipeline(tables.Events(), memory.New(), nil, nil).Run(ctx, text, nil)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, core.RowPersistence, result.Errors[0].Kind)
	assert.Equal(t, context.Canceled.Error(), result.Errors[0].Message)
}

func TestPipeline_Events(t *testing.T) {
	text := "Nom,Courriel,Tél.,Motif,Date,Heure,Statut\n" +
		"Ana Roy,ANA@x.io,(514) 555-0134,Suivi,12/06/2025,9h30,Confirmé\n" +
		"Ana Roy,ana@x.io,514 555 0134,Suivi,12/06/2025,14:00,\n" + // events are not deduplicated
		"Luc Caron,luc@x.io,,Bilan,,,\n" +
		"Zoé Côté,zoe@x.io,5145550000,Bilan,2025-13-40,,\n" +
		"Max Bé,max@x.io,5145550000,Bilan,,,inconnu\n"

	store := memory.New()
	result, err := core.NewPipeline(tables.Events(), store, nil, nil).Run(context.Background(), text, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 0, result.Duplicates)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "Nom, email, téléphone et motif sont requis", result.Errors[0].Message)
	assert.Equal(t, "Date invalide: 2025-13-40", result.Errors[1].Message)
	assert.Equal(t, "Statut invalide: inconnu", result.Errors[2].Message)

	first := store.Records(core.KindEvents)[0]
	assert.Equal(t, "ana@x.io", first["email"])
	assert.Equal(t, "514-555-0134", first["phone"])
	assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), first["scheduled_date"])
	assert.Equal(t, "09:30", first["scheduled_time"])
	assert.Equal(t, "confirmed", first["status"])

	second := store.Records(core.KindEvents)[1]
	assert.Equal(t, "scheduled", second["status"])
}

func TestPipeline_FalsyTransformOmitted(t *testing.T) {
	def := core.Definition{
		Kind:  "custom",
		Table: "custom",
		Fields: []core.CanonicalField{
			{Label: "Nom", StorageKey: "name", Required: true},
			{Label: "Quantité", StorageKey: "qty", Transform: func(s string) any {
				var n int
				fmt.Sscanf(s, "%d", &n)
				return n
			}},
		},
	}

	store := memory.New()
	result, err := core.NewPipeline(def, store, nil, nil).Run(context.Background(), "nom,quantite\nA,0\nB,3\nC,\n", nil)
	require.NoError(t, err)
	require.Equal(t, 3, result.Success)

	recs := store.Records("custom")
	assert.NotContains(t, recs[0], "qty", "zero is dropped like an empty cell")
	assert.Equal(t, 3, recs[1]["qty"])
	assert.NotContains(t, recs[2], "qty")
}

func TestPipeline_ShortRowsSkipMissingCells(t *testing.T) {
	text := "Prénom,Nom,Email,Téléphone\nAna,Roy\n"

	store := memory.New()
	result, err := runPersons(t, store, text)
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)

	rec := store.Records(core.KindPersons)[0]
	assert.NotContains(t, rec, "email")
	assert.NotContains(t, rec, "phone")
}

func TestPipeline_PanickingTransformIsRowScoped(t *testing.T) {
	def := core.Definition{
		Kind:  "custom",
		Table: "custom",
		Fields: []core.CanonicalField{
			{Label: "Nom", StorageKey: "name", Required: true, Transform: func(s string) any {
				if s == "boom" {
					panic("bad transformer")
				}
				return s
			}},
		},
	}

	result, err := core.NewPipeline(def, memory.New(), nil, nil).Run(context.Background(), "nom\nboom\nok\n", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "bad transformer")
}
