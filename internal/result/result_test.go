package result

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_States(t *testing.T) {
	var zero Result[int]
	assert.True(t, zero.IsLoading())

	s := Success(7)
	v, ok := s.Value()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 7, s.OrDefault(1))

	f := Failure[int](errors.New("boom"))
	assert.True(t, f.IsError())
	assert.Equal(t, "boom", f.Message())
	assert.Equal(t, 1, f.OrDefault(1))
	_, ok = f.Value()
	assert.False(t, ok)

	assert.Equal(t, unknownError, Failure[int](nil).Message())
	assert.Equal(t, "Upload failed", FailureMessage[int](errors.New("x"), "Upload failed").Message())
}

func TestMap(t *testing.T) {
	got := Map(Success(21), func(v int) string { return strconv.Itoa(v * 2) })
	v, _ := got.Value()
	assert.Equal(t, "42", v)

	err := errors.New("nope")
	failed := Map(Failure[int](err), func(v int) string { return "unused" })
	assert.True(t, failed.IsError())
	assert.ErrorIs(t, failed.Err(), err)

	assert.True(t, Map(Loading[int](), strconv.Itoa).IsLoading())
}

func TestOf(t *testing.T) {
	assert.True(t, Of(func() (int, error) { return 1, nil }).IsSuccess())
	assert.True(t, Of(func() (int, error) { return 0, errors.New("x") }).IsError())
}

func TestCallbacks(t *testing.T) {
	var seen int
	Success(3).OnSuccess(func(v int) { seen = v }).OnError(func(error, string) { seen = -1 })
	assert.Equal(t, 3, seen)

	var msg string
	Failure[int](errors.New("bad")).OnSuccess(func(int) { msg = "wrong" }).OnError(func(_ error, m string) { msg = m })
	assert.Equal(t, "bad", msg)
}

func TestMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Success([]string{"a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"success","data":["a"]}`, string(b))

	b, err = json.Marshal(Failure[[]string](errors.New("no items")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"error","message":"no items"}`, string(b))

	b, err = json.Marshal(Loading[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"loading"}`, string(b))
}
