package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clinicimport/internal/config"
	"github.com/JonMunkholm/clinicimport/internal/core"
	"github.com/JonMunkholm/clinicimport/internal/core/tables"
	"github.com/JonMunkholm/clinicimport/internal/store/memory"
)

func newService(t *testing.T, store core.Store, cfg config.ImportConfig) *core.Service {
	t.Helper()
	svc, err := core.NewService(tables.Registry(), store, cfg)
	require.NoError(t, err)
	return svc
}

const personsCSV = "Prénom,Nom,Email\nAna,Roy,ana@x.io\nLuc,Caron,bad\nZoé,Côté,zoe@x.io\n"

func TestService_Import(t *testing.T) {
	svc := newService(t, memory.New(), config.ImportConfig{})

	var calls int
	result, err := svc.Import(context.Background(), core.KindPersons, "patients.csv", strings.NewReader("\xEF\xBB\xBF"+personsCSV), func(int, int) { calls++ })
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "patients.csv", result.FileName)
	assert.Equal(t, core.KindPersons, result.Kind)
	assert.Equal(t, core.RawRow{"Prénom", "Nom", "Email"}, result.Headers)
	assert.Equal(t, 2, result.Success)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 3, calls)
}

func TestService_ImportUnknownKind(t *testing.T) {
	svc := newService(t, memory.New(), config.ImportConfig{})

	_, err := svc.Import(context.Background(), "invoices", "x.csv", strings.NewReader(personsCSV), nil)
	assert.ErrorIs(t, err, core.ErrUnknownKind)
}

func TestService_ImportFatalHasPrefix(t *testing.T) {
	svc := newService(t, memory.New(), config.ImportConfig{MaxFileSize: 8})

	_, err := svc.Import(context.Background(), core.KindPersons, "x.csv", strings.NewReader(personsCSV), nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), core.FatalPrefix), err.Error())

	var structural *core.StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestService_BadMatcherConfig(t *testing.T) {
	_, err := core.NewService(tables.Registry(), memory.New(), config.ImportConfig{HeaderMatcher: "fuzzy"})
	assert.Error(t, err)
}

func TestService_StartImportAndResult(t *testing.T) {
	svc := newService(t, memory.New(), config.ImportConfig{})
	ctx := context.Background()

	runID, err := svc.StartImport(ctx, core.KindPersons, "patients.csv", []byte(personsCSV))
	require.NoError(t, err)

	updates, err := svc.SubscribeProgress(runID)
	require.NoError(t, err)

	var last core.ImportProgress
	for p := range updates {
		assert.Equal(t, runID, p.RunID)
		last = p
	}

	// The channel may drop intermediate updates but closes after the run.
	final, err := svc.GetProgress(runID)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseComplete, final.Phase)
	assert.Equal(t, 100, final.Percent())
	assert.Equal(t, 2, final.Success)
	assert.Equal(t, 1, final.Errors)
	assert.NotEmpty(t, last.Phase)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	result, err := svc.GetResult(waitCtx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, result.RunID)
	assert.Equal(t, 2, result.Success)

	// A subscriber arriving after completion gets the final state and a closed channel.
	late, err := svc.SubscribeProgress(runID)
	require.NoError(t, err)
	p, ok := <-late
	require.True(t, ok)
	assert.Equal(t, core.PhaseComplete, p.Phase)
	_, ok = <-late
	assert.False(t, ok)

	assert.Equal(t, 0, svc.LimiterStatus().Active)
}

func TestService_StartImportFatal(t *testing.T) {
	svc := newService(t, memory.New(), config.ImportConfig{})

	runID, err := svc.StartImport(context.Background(), core.KindPersons, "x.csv", []byte("Prénom,Email\nAna,a@x.io\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = svc.GetResult(ctx, runID)
	var schema *core.SchemaError
	require.ErrorAs(t, err, &schema)

	p, err := svc.GetProgress(runID)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseFailed, p.Phase)
	assert.True(t, strings.HasPrefix(p.Error, core.FatalPrefix))
}

func TestService_StartImportOutlivesRequest(t *testing.T) {
	release := make(chan struct{})
	store := memory.New(memory.WithInsertHook(func(core.Kind, core.Record) error {
		<-release
		return nil
	}))
	svc := newService(t, store, config.ImportConfig{})

	reqCtx, cancelReq := context.WithCancel(context.Background())
	runID, err := svc.StartImport(reqCtx, core.KindPersons, "x.csv", []byte(personsCSV))
	require.NoError(t, err)

	cancelReq()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := svc.GetResult(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Success, "cancelling the request must not cancel the run")
}

func TestService_LimiterRejectsWhenBusy(t *testing.T) {
	release := make(chan struct{})
	store := memory.New(memory.WithInsertHook(func(core.Kind, core.Record) error {
		<-release
		return nil
	}))
	svc := newService(t, store, config.ImportConfig{MaxConcurrent: 1, MaxWaitTime: 20 * time.Millisecond})

	_, err := svc.StartImport(context.Background(), core.KindPersons, "a.csv", []byte(personsCSV))
	require.NoError(t, err)

	_, err = svc.StartImport(context.Background(), core.KindPersons, "b.csv", []byte(personsCSV))
	assert.ErrorIs(t, err, core.ErrTooManyImports)

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitForImports(ctx))
}

func TestService_UnknownRun(t *testing.T) {
	svc := newService(t, memory.New(), config.ImportConfig{})

	_, err := svc.GetProgress("nope")
	assert.True(t, errors.Is(err, core.ErrRunNotFound))

	_, err = svc.SubscribeProgress("nope")
	assert.ErrorIs(t, err, core.ErrRunNotFound)

	_, err = svc.GetResult(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}
