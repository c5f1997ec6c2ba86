package bulk

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"testing"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sale(plant string, qty interface{}) map[string]interface{} {
	return map[string]interface{}{
		"plant":        plant,
		"materialCode": "M-1",
		"quantity":     qty,
		"mrp":          100,
		"gsv":          "1000",
		"nsv":          900,
	}
}

func newSalesEngine(store *memoryStore, opts Options) *Engine {
	return NewEngine(models.EntitySales, validation.NewRecordValidator(), store, opts)
}

func assertCounts(t *testing.T, res models.BulkResult) {
	t.Helper()
	switch res.Operation {
	case models.BulkOperationDelete:
		assert.Equal(t, res.Total, res.Deleted+res.Failed, "deleted+failed must equal total")
	default:
		assert.Equal(t, res.Total, res.Created+res.Updated+res.Failed, "created+updated+failed must equal total")
	}
	assert.Len(t, res.Errors, res.Failed)
	assert.True(t, sort.SliceIsSorted(res.Errors, func(i, j int) bool {
		return res.Errors[i].Index < res.Errors[j].Index
	}), "errors must be ordered by index")
}

func TestImport_IsolatesFailedRecord(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{})

	records := make([]map[string]interface{}, 10)
	for i := range records {
		records[i] = sale("P1", i)
	}
	records[4] = sale("P1", -5)

	res, err := engine.Import(context.Background(), records, 3)
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 9, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Index)
	assert.Equal(t, models.ReasonValidation, res.Errors[0].Reason)
	assert.Equal(t, "quantity must be greater than or equal to 0", res.Errors[0].Message)
	assert.Equal(t, records[4], res.Errors[0].Record, "records without an id are echoed back")
	assert.Len(t, store.ids(), 9)
}

func TestImport_IsolatesRecordMissingRequiredField(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{})

	records := make([]map[string]interface{}, 10)
	for i := range records {
		records[i] = sale("P1", i)
	}
	delete(records[4], "nsv")

	res, err := engine.Import(context.Background(), records, 0)
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 9, res.Created)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Index)
	assert.Equal(t, models.ReasonValidation, res.Errors[0].Reason)
	assert.Equal(t, "nsv is required", res.Errors[0].Message)
	assert.Equal(t, http.StatusPartialContent, Classify(res).Status)
	assert.Len(t, store.ids(), 9)
}

func TestImport_ReimportWithIDsOnlyUpdates(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{})
	ctx := context.Background()

	_, err := engine.Import(ctx, []map[string]interface{}{sale("P1", 1), sale("P2", 2), sale("P3", 3)}, 0)
	require.NoError(t, err)

	ids := store.ids()
	sort.Strings(ids)
	var again []map[string]interface{}
	for _, id := range ids {
		rec := sale("P9", 7)
		rec["id"] = id
		again = append(again, rec)
	}

	for run := 0; run < 2; run++ {
		res, err := engine.Import(ctx, again, 2)
		require.NoError(t, err)
		assertCounts(t, res)
		assert.Equal(t, 3, res.Updated)
		assert.Equal(t, 0, res.Created)
		assert.Equal(t, 0, res.Failed)
	}

	assert.Len(t, store.ids(), 3)
	assert.Equal(t, "P9", store.doc(ids[0])["plant"])
	assert.Equal(t, 7.0, store.doc(ids[0])["quantity"])
}

func TestImport_UpdateUnknownIDIsNotFound(t *testing.T) {
	engine := newSalesEngine(newMemoryStore(), Options{})
	rec := sale("P1", 1)
	rec["id"] = "missing"

	res, err := engine.Import(context.Background(), []map[string]interface{}{rec}, 0)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, models.ReasonNotFound, res.Errors[0].Reason)
	assert.Equal(t, "missing", res.Errors[0].ID)
	assert.Nil(t, res.Errors[0].Record)
	assert.Equal(t, http.StatusBadRequest, Classify(res).Status)
}

func TestImport_DuplicateKeyIsConstraint(t *testing.T) {
	store := newMemoryStore()
	store.uniqueField = "materialCode"
	engine := NewEngine(models.EntityProducts, validation.NewRecordValidator(), store, Options{})

	product := func(code string) map[string]interface{} {
		return map[string]interface{}{"materialCode": code, "description": "Soap", "mrp": 35}
	}
	res, err := engine.Import(context.Background(), []map[string]interface{}{product("A"), product("B"), product("A")}, 0)
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Index)
	assert.Equal(t, models.ReasonConstraint, res.Errors[0].Reason)
}

func TestImport_TwoRecordPartialSuccess(t *testing.T) {
	engine := newSalesEngine(newMemoryStore(), Options{})

	res, err := engine.Import(context.Background(), []map[string]interface{}{sale("P1", 2), sale("P1", -1)}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "50.00%", res.SuccessRate())
	assert.Equal(t, Outcome{Kind: PartialSuccess, Status: http.StatusPartialContent}, Classify(res))
}

func TestImport_EmptyInputTouchesNothing(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{})

	res, err := engine.Import(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Total)
	assert.Equal(t, "0%", res.SuccessRate())
	assert.Equal(t, http.StatusOK, Classify(res).Status)
	assert.Zero(t, store.pings.Load())
	assert.Zero(t, store.mutations.Load())
}

func TestImport_CountsAddUpForMixedInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{MaxConcurrency: 3})

	records := make([]map[string]interface{}, 137)
	for i := range records {
		switch rng.Intn(4) {
		case 0:
			records[i] = sale("", 1)
		case 1:
			rec := sale("P1", 1)
			rec["id"] = "nope"
			records[i] = rec
		default:
			records[i] = sale("P1", rng.Intn(50))
		}
	}

	res, err := engine.Import(context.Background(), records, 1+rng.Intn(100))
	require.NoError(t, err)
	assertCounts(t, res)
	assert.Equal(t, 137, res.Total)
}

func TestImport_CancellationStopsFurtherStoreCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemoryStore()
	created := 0
	store.createHook = func(map[string]interface{}) error {
		created++
		if created == 2 {
			cancel()
		}
		return nil
	}
	engine := newSalesEngine(store, Options{})

	records := []map[string]interface{}{sale("P1", 1), sale("P1", 2), sale("P1", 3), sale("P1", 4), sale("P1", 5)}
	res, err := engine.Import(ctx, records, 2)
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 3, res.Failed)
	for _, e := range res.Errors {
		assert.Equal(t, models.ReasonCancelled, e.Reason)
	}
	assert.EqualValues(t, 2, store.mutations.Load())
	assert.Equal(t, http.StatusPartialContent, Classify(res).Status)
}

func TestImport_AlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{})

	res, err := engine.Import(ctx, []map[string]interface{}{sale("P1", 1), sale("P1", 2)}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, store.mutations.Load())
	assert.Equal(t, http.StatusInternalServerError, Classify(res).Status)
}

func TestImport_ConcurrentBatchesKeepInputOrder(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{MaxConcurrency: 4})

	bad := map[int]bool{3: true, 7: true, 15: true, 38: true}
	records := make([]map[string]interface{}, 40)
	for i := range records {
		if bad[i] {
			records[i] = sale("P1", -1)
			continue
		}
		records[i] = sale("P1", i)
	}

	res, err := engine.Import(context.Background(), records, 10)
	require.NoError(t, err)
	assertCounts(t, res)

	var indexes []int
	for _, e := range res.Errors {
		indexes = append(indexes, e.Index)
	}
	assert.Equal(t, []int{3, 7, 15, 38}, indexes)
	assert.Equal(t, 36, res.Created)
	assert.LessOrEqual(t, store.maxFlight.Load(), int32(4))
}

func TestImport_PanicBecomesInternalFailure(t *testing.T) {
	store := newMemoryStore()
	store.createHook = func(fields map[string]interface{}) error {
		if fields["plant"] == "BOOM" {
			panic("driver exploded")
		}
		return nil
	}
	engine := newSalesEngine(store, Options{})

	res, err := engine.Import(context.Background(), []map[string]interface{}{sale("P1", 1), sale("BOOM", 1), sale("P1", 2)}, 0)
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, models.ReasonInternal, res.Errors[0].Reason)
	assert.Equal(t, internalFailureMessage, res.Errors[0].Message)
}

func TestImport_StoreUnavailableBeforeRun(t *testing.T) {
	store := newMemoryStore()
	store.pingHook = func(int) error { return errors.New("server selection timeout") }
	engine := newSalesEngine(store, Options{})

	res, err := engine.Import(context.Background(), []map[string]interface{}{sale("P1", 1)}, 0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Zero(t, res.Total, "nothing reached per-record processing")
	assert.Zero(t, store.mutations.Load())
}

func TestImport_StoreLostMidRun(t *testing.T) {
	store := newMemoryStore()
	store.createHook = func(map[string]interface{}) error { return errors.New("connection reset by peer") }
	store.pingHook = func(call int) error {
		if call > 1 {
			return errors.New("no reachable servers")
		}
		return nil
	}
	engine := newSalesEngine(store, Options{})

	records := []map[string]interface{}{sale("P1", 1), sale("P1", 2), sale("P1", 3), sale("P1", 4)}
	res, err := engine.Import(context.Background(), records, 2)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.EqualValues(t, 2, store.mutations.Load(), "the run stops after the first failed sub-batch")

	assertCounts(t, res)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 4, res.Failed)
	assert.Equal(t, models.ReasonInternal, res.Errors[3].Reason)
	assert.Equal(t, "store unavailable", res.Errors[3].Message)
}

func TestImport_StoreLostAfterCommittedBatchKeepsAccounting(t *testing.T) {
	store := newMemoryStore()
	var creates int
	store.createHook = func(map[string]interface{}) error {
		creates++
		if creates > 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	}
	store.pingHook = func(call int) error {
		if call > 1 {
			return errors.New("no reachable servers")
		}
		return nil
	}
	engine := newSalesEngine(store, Options{})

	records := []map[string]interface{}{sale("P1", 1), sale("P1", 2), sale("P1", 3), sale("P1", 4), sale("P1", 5), sale("P1", 6)}
	res, err := engine.Import(context.Background(), records, 2)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	assertCounts(t, res)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 4, res.Failed)
	assert.Len(t, store.ids(), 2)
	assert.EqualValues(t, 4, store.mutations.Load(), "the third sub-batch is never attempted")

	for i, e := range res.Errors {
		assert.Equal(t, i+2, e.Index)
		assert.Equal(t, models.ReasonInternal, e.Reason)
	}
	assert.Equal(t, "store unavailable", res.Errors[2].Message)
	assert.Equal(t, records[4], res.Errors[2].Record)
	assert.Equal(t, "33.33%", res.SuccessRate())
}

func TestImport_InternalFailuresWithHealthyStoreAreReported(t *testing.T) {
	store := newMemoryStore()
	store.createHook = func(map[string]interface{}) error { return errors.New("write concern timeout") }
	engine := newSalesEngine(store, Options{})

	res, err := engine.Import(context.Background(), []map[string]interface{}{sale("P1", 1), sale("P1", 2)}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, http.StatusInternalServerError, Classify(res).Status)
}

func TestDelete_MissingIDIsNotFound(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{DeleteBatchSize: 2})
	ctx := context.Background()

	_, err := engine.Import(ctx, []map[string]interface{}{sale("P1", 1), sale("P2", 2)}, 0)
	require.NoError(t, err)
	ids := store.ids()
	sort.Strings(ids)

	res, err := engine.Delete(ctx, []string{ids[0], "id-999", ids[1]})
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "id-999", res.Errors[0].ID)
	assert.Equal(t, models.ReasonNotFound, res.Errors[0].Reason)
	assert.Empty(t, store.ids())
}

func TestDelete_BlankAndRepeatedIDs(t *testing.T) {
	store := newMemoryStore()
	engine := newSalesEngine(store, Options{})
	ctx := context.Background()

	_, err := engine.Import(ctx, []map[string]interface{}{sale("P1", 1)}, 0)
	require.NoError(t, err)
	id := store.ids()[0]

	res, err := engine.Delete(ctx, []string{" ", id, id})
	require.NoError(t, err)
	assertCounts(t, res)

	assert.Equal(t, 1, res.Deleted)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, models.ReasonValidation, res.Errors[0].Reason)
	assert.Equal(t, models.ReasonNotFound, res.Errors[1].Reason)
	assert.Equal(t, "33.33%", res.SuccessRate())
}

func TestClampBatchSize(t *testing.T) {
	assert.Equal(t, 50, ClampBatchSize(0, 50))
	assert.Equal(t, 50, ClampBatchSize(-3, 50))
	assert.Equal(t, 1, ClampBatchSize(1, 50))
	assert.Equal(t, 100, ClampBatchSize(500, 50))
}
