package replicated

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/IvanBrykalov/replcache/keycodec"
	"github.com/alicebob/miniredis/v2"
	"github.com/alicebob/miniredis/v2/server"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

// deadAddr returns a loopback address nothing listens on.
func deadAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testOptions(t *testing.T) Options {
	return Options{
		Encoding:       keycodec.String,
		ConnectTimeout: 500 * time.Millisecond,
		OpTimeout:      500 * time.Millisecond,
		Logger:         zaptest.NewLogger(t),
	}
}

func newClient[V any](t *testing.T, master string, replicas []string, opt Options) *Client[string, V] {
	t.Helper()
	c := New[string, V](master, replicas, opt)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// recordingMetrics captures the signals a Client reports.
type recordingMetrics struct {
	cache.NoopMetrics
	mu          sync.Mutex
	hits        int
	misses      int
	degraded    []cache.Op
	transitions []string
}

func (m *recordingMetrics) Hit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *recordingMetrics) Miss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

func (m *recordingMetrics) Degraded(op cache.Op) {
	m.mu.Lock()
	m.degraded = append(m.degraded, op)
	m.mu.Unlock()
}

func (m *recordingMetrics) Transition(s string) {
	m.mu.Lock()
	m.transitions = append(m.transitions, s)
	m.mu.Unlock()
}

// Master and replica configured as the same server (spelled differently)
// collapse into one standalone connection.
func TestClient_StandaloneWhenMasterIsReplica(t *testing.T) {
	mr := miniredis.RunT(t)
	_, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	c := newClient[string](t, "localhost:"+port, []string{mr.Addr()}, testOptions(t))

	st := c.Status()
	assert.Equal(t, StateStandalone, st.State)
	assert.True(t, st.Standalone)
	assert.True(t, st.MasterConnected)
	assert.True(t, st.ReplicaConnected)
	assert.Equal(t, st.Master, st.Replica)

	_, existed := c.Put("k", "v")
	assert.False(t, existed)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	raw, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, raw)
}

// An unreachable master with a live replica promotes the replica, which
// then serves writes.
func TestClient_PromotesReplicaWhenMasterDown(t *testing.T) {
	replica := miniredis.RunT(t)

	c := newClient[string](t, deadAddr(t), []string{replica.Addr()}, testOptions(t))

	st := c.Status()
	assert.Equal(t, StatePromoted, st.State)
	assert.False(t, st.MasterConnected)
	assert.True(t, st.ReplicaConnected)
	assert.True(t, st.Standalone)

	c.Put("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, replica.Exists("k"))
}

// With both servers up, writes go to the master and reads to the replica.
func TestClient_ReplicatingSplitsReadsAndWrites(t *testing.T) {
	master := miniredis.RunT(t)
	replica := miniredis.RunT(t)

	c := newClient[string](t, master.Addr(), []string{replica.Addr()}, testOptions(t))

	st := c.Status()
	assert.Equal(t, StateReplicating, st.State)
	assert.False(t, st.Standalone)
	assert.Equal(t, master.Addr(), st.Master)
	assert.Equal(t, replica.Addr(), st.Replica)

	c.Put("w", "written")
	assert.True(t, master.Exists("w"))
	assert.False(t, replica.Exists("w"))

	require.NoError(t, replica.Set("r", `"from-replica"`))
	v, ok := c.Get("r")
	require.True(t, ok)
	assert.Equal(t, "from-replica", v)
}

// The first reachable replica in configured order wins.
func TestClient_SkipsDeadReplicas(t *testing.T) {
	master := miniredis.RunT(t)
	replica := miniredis.RunT(t)

	c := newClient[string](t, master.Addr(), []string{deadAddr(t), replica.Addr()}, testOptions(t))
	assert.Equal(t, StateReplicating, c.Status().State)
	assert.Equal(t, replica.Addr(), c.Status().Replica)
}

// A live master with no live replica serves reads itself.
func TestClient_MasterOnly(t *testing.T) {
	master := miniredis.RunT(t)

	c := newClient[int](t, master.Addr(), []string{deadAddr(t)}, testOptions(t))

	st := c.Status()
	assert.Equal(t, StateStandalone, st.State)
	assert.True(t, st.MasterConnected)
	assert.False(t, st.ReplicaConnected)

	c.Put("n", 7)
	v, ok := c.Get("n")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestClient_UnavailableFailsOpen(t *testing.T) {
	m := &recordingMetrics{}
	opt := testOptions(t)
	opt.Metrics = m

	c := newClient[string](t, deadAddr(t), []string{deadAddr(t)}, opt)
	assert.Equal(t, StateUnavailable, c.Status().State)

	_, ok := c.Get("k")
	assert.False(t, ok)
	_, existed := c.Put("k", "v")
	assert.False(t, existed)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.IsEmpty())
	c.Clear()

	r := c.Lookup("k")
	assert.False(t, r.Found)
	assert.True(t, r.Degraded)
	assert.ErrorIs(t, r.Err, ErrUnavailable)

	assert.ErrorIs(t, c.Discover(context.Background()), ErrUnavailable)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Contains(t, m.degraded, cache.OpGet)
	assert.Contains(t, m.degraded, cache.OpPut)
	assert.Contains(t, m.degraded, cache.OpLen)
	assert.Contains(t, m.degraded, cache.OpClear)
	assert.Equal(t, []string{"unavailable"}, m.transitions)
}

func TestClient_InvalidMasterStillUsesReplica(t *testing.T) {
	replica := miniredis.RunT(t)

	c := newClient[string](t, "", []string{replica.Addr()}, testOptions(t))
	assert.Equal(t, StatePromoted, c.Status().State)
	c.Put("k", "v")
	assert.True(t, replica.Exists("k"))
}

// Losing the master at runtime degrades one write, promotes the replica and
// lets the next write succeed.
func TestClient_FailoverAtRuntime(t *testing.T) {
	master := miniredis.RunT(t)
	replica := miniredis.RunT(t)
	m := &recordingMetrics{}
	opt := testOptions(t)
	opt.Metrics = m

	c := newClient[string](t, master.Addr(), []string{replica.Addr()}, opt)
	require.Equal(t, StateReplicating, c.Status().State)

	master.Close()

	r := c.Store("k", "lost")
	assert.True(t, r.Degraded)
	assert.Error(t, r.Err)
	assert.Equal(t, StatePromoted, c.Status().State)

	r = c.Store("k", "kept")
	assert.False(t, r.Degraded)
	raw, err := replica.Get("k")
	require.NoError(t, err)
	assert.Equal(t, `"kept"`, raw)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{"replicating", "promoted"}, m.transitions)
}

func TestClient_DegradedReadThenRecovery(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient[string](t, mr.Addr(), []string{mr.Addr()}, testOptions(t))
	c.Put("k", "v")

	mr.Close()
	r := c.Lookup("k")
	assert.False(t, r.Found)
	assert.True(t, r.Degraded)
	assert.Equal(t, StateUnavailable, c.Status().State)

	require.NoError(t, mr.Restart())
	require.NoError(t, c.Discover(context.Background()))
	assert.Equal(t, StateStandalone, c.Status().State)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestClient_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	opt := testOptions(t)
	opt.TTL = 10 * time.Second

	c := newClient[string](t, mr.Addr(), nil, opt)
	c.Put("k", "v")
	assert.Equal(t, 10*time.Second, mr.TTL("k"))

	mr.FastForward(5 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	mr.FastForward(5 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestClient_NoTTLMeansNoExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient[string](t, mr.Addr(), nil, testOptions(t))
	c.Put("k", "v")
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
}

func TestClient_PutReturnsPrevious_RemoveAndLen(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient[int](t, mr.Addr(), []string{mr.Addr()}, testOptions(t))

	_, existed := c.Put("a", 1)
	assert.False(t, existed)
	prev, existed := c.Put("a", 2)
	require.True(t, existed)
	assert.Equal(t, 1, prev)

	c.Put("b", 3)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.IsEmpty())

	v, ok := c.Remove("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = c.Remove("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Flush()
	assert.True(t, c.IsEmpty())

	c.AssertMaxSize(0) // server-side policy; nothing happens
	c.Put("c", 4)
	assert.Equal(t, 1, c.Len())
}

// Keys are encoded before they reach the server.
func TestClient_DefaultKeyEncoding(t *testing.T) {
	mr := miniredis.RunT(t)
	opt := testOptions(t)
	opt.Encoding = 0

	c := newClient[string](t, mr.Addr(), nil, opt)
	c.Put("hello", "v")
	assert.True(t, mr.Exists("99162322"))
	assert.False(t, mr.Exists("hello"))
}

type profile struct {
	Name  string   `json:"name" msgpack:"name"`
	Age   int      `json:"age" msgpack:"age"`
	Roles []string `json:"roles" msgpack:"roles"`
}

func TestClient_StructValues(t *testing.T) {
	for _, s := range []Serializer{JSON{}, Msgpack{}} {
		t.Run(s.Name(), func(t *testing.T) {
			mr := miniredis.RunT(t)
			opt := testOptions(t)
			opt.Serializer = s

			c := newClient[profile](t, mr.Addr(), nil, opt)
			want := profile{Name: "ada", Age: 36, Roles: []string{"admin"}}
			c.Put("u:1", want)
			got, ok := c.Get("u:1")
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestClient_UndecodableValueIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient[int](t, mr.Addr(), nil, testOptions(t))
	require.NoError(t, mr.Set("k", "not-json"))

	r := c.Lookup("k")
	assert.False(t, r.Found)
	assert.False(t, r.Degraded)
	assert.Error(t, r.Err)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New[string, string](mr.Addr(), nil, testOptions(t))
	c.Put("k", "v")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.Status().State)

	r := c.Lookup("k")
	assert.False(t, r.Found)
	assert.ErrorIs(t, r.Err, ErrClosed)
	assert.ErrorIs(t, c.Discover(context.Background()), ErrClosed)
	assert.True(t, mr.Exists("k"), "closing must not touch server data")
}

func TestClient_Concurrent(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient[int](t, mr.Addr(), []string{mr.Addr()}, testOptions(t))

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				k := strconv.Itoa(w*1000 + i)
				c.Put(k, i)
				if v, ok := c.Get(k); !ok || v != i {
					return assert.AnError
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 400, c.Len())
}

// recordReplicaof installs a REPLICAOF handler on mr and returns a getter
// for the arguments of the last call.
func recordReplicaof(t *testing.T, mr *miniredis.Miniredis) func() []string {
	t.Helper()
	var (
		mu   sync.Mutex
		args []string
	)
	require.NoError(t, mr.Server().Register("REPLICAOF", func(p *server.Peer, _ string, a []string) {
		mu.Lock()
		args = append([]string(nil), a...)
		mu.Unlock()
		p.WriteOK()
	}))
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return args
	}
}

// A loopback master name is replaced by a routable address in the
// replication directive; it only stays loopback on a host without one.
func TestClient_ReplicaofLoopbackMasterIsRoutable(t *testing.T) {
	master := miniredis.RunT(t)
	replica := miniredis.RunT(t)
	got := recordReplicaof(t, replica)
	_, port, err := net.SplitHostPort(master.Addr())
	require.NoError(t, err)

	c := newClient[string](t, "localhost:"+port, []string{replica.Addr()}, testOptions(t))
	require.Equal(t, StateReplicating, c.Status().State)

	args := got()
	require.Len(t, args, 2)
	want := localAddress()
	if want == "" {
		want = "127.0.0.1"
	} else {
		assert.NotEqual(t, "127.0.0.1", args[0])
	}
	assert.Equal(t, []string{want, port}, args)
}

// A non-loopback master host is sent as configured, not as the address it
// resolved to.
func TestClient_ReplicaofKeepsConfiguredHost(t *testing.T) {
	master := miniredis.RunT(t)
	replica := miniredis.RunT(t)
	got := recordReplicaof(t, replica)

	opt := testOptions(t)
	opt.Resolver = fakeResolver{"db.internal": {"10.0.0.7"}}
	opt.Dial = func(addr string) *redis.Client {
		if addr == "db.internal:6379" {
			addr = master.Addr()
		}
		return redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	}

	c := newClient[string](t, "db.internal", []string{replica.Addr()}, opt)
	require.Equal(t, StateReplicating, c.Status().State)
	assert.Equal(t, []string{"db.internal", "6379"}, got())
}

func TestClient_ReplicaofMasterAdvertise(t *testing.T) {
	master := miniredis.RunT(t)
	replica := miniredis.RunT(t)
	got := recordReplicaof(t, replica)
	_, port, err := net.SplitHostPort(master.Addr())
	require.NoError(t, err)

	opt := testOptions(t)
	opt.MasterAdvertise = "10.9.8.7"
	c := newClient[string](t, master.Addr(), []string{replica.Addr()}, opt)
	require.Equal(t, StateReplicating, c.Status().State)
	assert.Equal(t, []string{"10.9.8.7", port}, got())
}
