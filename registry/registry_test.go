package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benoitkugler/pdfgraph/object"
)

func TestResolveUndefinedReferenceReturnsNull(t *testing.T) {
	r := New(nil)
	obj, err := r.Resolve(object.Reference{Num: 5, Gen: 0})
	require.NoError(t, err)
	assert.Equal(t, object.Null{}, obj)
}

func TestResolveGenerationMismatchReturnsNull(t *testing.T) {
	r := New(nil)
	r.Define(1, 2, object.Integer(7))
	obj, err := r.Resolve(object.Reference{Num: 1, Gen: 0})
	require.NoError(t, err)
	assert.Equal(t, object.Null{}, obj)
}

func TestResolveLazilyMaterializesViaResolver(t *testing.T) {
	calls := 0
	resolver := func(num, gen int) (object.Object, error) {
		calls++
		return object.Integer(num * 10), nil
	}
	r := New(resolver)
	r.Define(3, 0, nil)

	obj, err := r.Resolve(object.Reference{Num: 3, Gen: 0})
	require.NoError(t, err)
	assert.Equal(t, object.Integer(30), obj)

	obj2, err := r.Resolve(object.Reference{Num: 3, Gen: 0})
	require.NoError(t, err)
	assert.Equal(t, object.Integer(30), obj2)
	assert.Equal(t, 1, calls, "resolver should only be invoked once per slot")
}

func TestResolvePropagatesResolverError(t *testing.T) {
	boom := errors.New("boom")
	r := New(func(num, gen int) (object.Object, error) { return nil, boom })
	r.Define(4, 0, nil)
	_, err := r.Resolve(object.Reference{Num: 4, Gen: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDefineFreeResolvesToNull(t *testing.T) {
	r := New(nil)
	r.DefineFree(9, 0)
	obj, err := r.Resolve(object.Reference{Num: 9, Gen: 0})
	require.NoError(t, err)
	assert.Equal(t, object.Null{}, obj)

	status, ok := r.Status(9)
	require.True(t, ok)
	assert.Equal(t, Free, status)
}

func TestSetOnUnknownSlotCreatesNewStatus(t *testing.T) {
	r := New(nil)
	ref := object.Reference{Num: 1, Gen: 0}
	r.Set(ref, object.Integer(1))
	status, ok := r.Status(1)
	require.True(t, ok)
	assert.Equal(t, New, status)
}

func TestSetOnNewSlotStaysNew(t *testing.T) {
	r := New(nil)
	ref := r.Allocate()
	r.Set(ref, object.Integer(1))
	status, _ := r.Status(ref.Num)
	assert.Equal(t, New, status)

	r.Set(ref, object.Integer(2))
	status, _ = r.Status(ref.Num)
	assert.Equal(t, New, status, "a New slot must not become Dirty merely by being Set again")
}

func TestSetOnOriginalSlotBecomesDirty(t *testing.T) {
	r := New(nil)
	r.Define(1, 0, object.Integer(1))
	r.Set(object.Reference{Num: 1, Gen: 0}, object.Integer(2))
	status, _ := r.Status(1)
	assert.Equal(t, Dirty, status)
}

func TestAllocateAssignsSequentialNumbers(t *testing.T) {
	r := New(nil)
	r.Define(5, 0, object.Integer(0))
	first := r.Allocate()
	second := r.Allocate()
	assert.Equal(t, object.Reference{Num: 6, Gen: 0}, first)
	assert.Equal(t, object.Reference{Num: 7, Gen: 0}, second)
}

func TestDeleteBumpsGenerationAndFreesSlot(t *testing.T) {
	r := New(nil)
	r.Define(1, 0, object.Integer(42))
	ref := object.Reference{Num: 1, Gen: 0}
	r.Delete(ref)

	obj, err := r.Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, object.Null{}, obj, "a stale handle to the deleted generation must resolve to null")

	status, _ := r.Status(1)
	assert.Equal(t, Free, status)

	_, gen, _, ok := r.RawObject(1)
	require.True(t, ok)
	assert.Equal(t, 1, gen)
}

func TestEntriesPreservesInsertionOrder(t *testing.T) {
	r := New(nil)
	r.Define(3, 0, object.Integer(0))
	r.Define(1, 0, object.Integer(0))
	r.Define(2, 0, object.Integer(0))
	entries := r.Entries()
	nums := make([]int, len(entries))
	for i, e := range entries {
		nums[i] = e.Num
	}
	assert.Equal(t, []int{3, 1, 2}, nums)
}

func TestDirtyNewFreeFilters(t *testing.T) {
	r := New(nil)
	r.Define(1, 0, object.Integer(0))
	r.Set(object.Reference{Num: 1, Gen: 0}, object.Integer(1))
	r.Define(2, 0, object.Integer(0))
	newRef := r.Allocate()
	r.Delete(object.Reference{Num: 2, Gen: 0})

	assert.Equal(t, []object.Reference{{Num: 1, Gen: 0}}, r.Dirty())
	assert.Equal(t, []object.Reference{newRef}, r.New())
	assert.Equal(t, []object.Reference{{Num: 2, Gen: 1}}, r.Free())
}

func TestClearDirtyPromotesToOriginal(t *testing.T) {
	r := New(nil)
	r.Define(1, 0, object.Integer(0))
	r.Set(object.Reference{Num: 1, Gen: 0}, object.Integer(1))
	newRef := r.Allocate()

	r.ClearDirty()

	status, _ := r.Status(1)
	assert.Equal(t, Original, status)
	status, _ = r.Status(newRef.Num)
	assert.Equal(t, Original, status)
	assert.Empty(t, r.Dirty())
	assert.Empty(t, r.New())
}
