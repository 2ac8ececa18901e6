package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterIdempotent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	id, err := r.Register("something", "", U64, UnitUnity, Strict)
	require.NoError(t, err)

	_, err = r.Register("something", "", U64, UnitUnity, Strict)
	require.Error(t, err, "Strict policy must reject any re-registration")

	idAgain, err := r.Register("something", "", U64, UnitUnity, Ignore)
	require.NoError(t, err)
	assert.Equal(t, id, idAgain, "Ignore policy must return the existing id for an identical descriptor")

	_, err = r.Register("something", "", F64, UnitUnity, Ignore)
	require.Error(t, err, "Ignore policy must reject an incompatible descriptor")

	renamedID, err := r.Register("something", "", U64, UnitUnity, Rename)
	require.NoError(t, err)
	assert.NotEqual(t, id, renamedID)

	m, ok := r.ByID(renamedID)
	require.True(t, ok)
	assert.Equal(t, "something_1", m.Name)
}

func TestRegistryByNameConsistentWithRegister(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	id, err := r.Register("cpu_energy", "cpu package energy", F64, Unit{Base: "joule"}, Strict)
	require.NoError(t, err)

	m, ok := r.ByName("cpu_energy")
	require.True(t, ok)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, "cpu package energy", m.Description)
}

func TestRegistryInvalidName(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Register("", "", U64, UnitUnity, Strict)
	require.Error(t, err)
	var invalidErr *ErrInvalidName
	require.ErrorAs(t, err, &invalidErr)
}

func TestCheckName(t *testing.T) {
	t.Parallel()
	testCases := map[string]bool{
		"simple":       true,
		"still_simple": true,
		"":             false,
		"@":            false,
		"a":            true,
		"special\n\t":  false,
		// both hangul and kanji numerals
		"hello.World_in_한글一안녕一세상": true,
	}

	for key, expected := range testCases {
		key, expected := key, expected
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, expected, checkName(key), key)
		})
	}
}

func TestCheckNameTooLong(t *testing.T) {
	t.Parallel()
	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, checkName(string(long)))
}

func TestRegistryDenseIDsInRegistrationOrder(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	idA, err := r.Register("a", "", U64, UnitUnity, Strict)
	require.NoError(t, err)
	idB, err := r.Register("b", "", U64, UnitUnity, Strict)
	require.NoError(t, err)

	assert.Equal(t, MetricID(0), idA)
	assert.Equal(t, MetricID(1), idB)
	assert.Len(t, r.All(), 2)
}

type recordingListener struct {
	seen []Metric
}

func (l *recordingListener) OnMetricRegistered(m Metric) {
	l.seen = append(l.seen, m)
}

func TestRegistryNotifiesListenersOnLateRegistration(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	listener := &recordingListener{}
	r.AddListener(listener)

	_, err := r.Register("late_metric", "", U64, UnitUnity, Strict)
	require.NoError(t, err)

	require.Len(t, listener.seen, 1)
	assert.Equal(t, "late_metric", listener.seen[0].Name)
}
