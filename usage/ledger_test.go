package usage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AppendAndRecent(t *testing.T) {
	l := NewLedger(0)

	l.Append("sk-a", Entry{Model: "m1", Timestamp: time.Unix(1, 0)})
	l.Append("sk-a", Entry{Model: "m2", Timestamp: time.Unix(2, 0)})
	l.Append("sk-b", Entry{Model: "other"})

	recent := l.Recent("sk-a")
	require.Len(t, recent, 2)
	assert.Equal(t, "m2", recent[0].Model, "most recent first")
	assert.Equal(t, "m1", recent[1].Model)

	assert.Len(t, l.Recent("sk-b"), 1)
	assert.Empty(t, l.Recent("sk-unknown"))
}

func TestLedger_EvictsOldestPastCapacity(t *testing.T) {
	l := NewLedger(DefaultCapacity)

	for i := 0; i < DefaultCapacity+1; i++ {
		l.Append("sk-a", Entry{Model: fmt.Sprintf("m%d", i)})
	}

	recent := l.Recent("sk-a")
	require.Len(t, recent, DefaultCapacity, "exactly capacity entries remain")
	assert.Equal(t, fmt.Sprintf("m%d", DefaultCapacity), recent[0].Model)
	assert.Equal(t, "m1", recent[len(recent)-1].Model, "oldest entry evicted")
}

func TestLedger_RecentReturnsCopy(t *testing.T) {
	l := NewLedger(10)
	l.Append("sk-a", Entry{Model: "original"})

	got := l.Recent("sk-a")
	got[0].Model = "mutated"

	assert.Equal(t, "original", l.Recent("sk-a")[0].Model)
}

func TestLedger_ConcurrentAppend(t *testing.T) {
	l := NewLedger(10_000)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append("sk-shared", Entry{Model: "m"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, l.Len("sk-shared"))
}

func TestHashCredential(t *testing.T) {
	h := HashCredential("sk-secret")
	assert.Len(t, h, 16)
	assert.NotContains(t, h, "sk-secret")
	assert.Equal(t, h, HashCredential("sk-secret"))
	assert.NotEqual(t, h, HashCredential("sk-other"))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short", Summarize("short"))

	long := ""
	for i := 0; i < 50; i++ {
		long += "abcde"
	}
	got := Summarize(long)
	assert.Less(t, len([]rune(got)), len([]rune(long)))
	assert.Contains(t, got, "…")
}
