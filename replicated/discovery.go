package replicated

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUnavailable is returned by discovery when no endpoint answered.
var ErrUnavailable = errors.New("replicated: no reachable endpoint")

// discoverLocked rebuilds the master/replica connections from scratch:
//
//  1. the first replica (in configured order) that answers PING is used;
//  2. if it resolves to the same host:port as the master, it serves both
//     roles and is detached from replication (standalone);
//  3. else if the master answers, the replica is told to follow it
//     (replicating), or the master serves both roles when no replica
//     answered (standalone);
//  4. else the replica is detached and serves both roles (promoted);
//  5. else nothing is connected (unavailable).
//
// Failed replication directives are logged and do not change the outcome.
func (c *Client[K, V]) discoverLocked(ctx context.Context) (State, error) {
	c.closeConnsLocked()

	var (
		replica     *redis.Client
		replicaEp   Endpoint
		replicaHost string
	)
	for _, ep := range c.replicas {
		conn := c.opt.Dial(ep.Addr())
		if err := c.ping(ctx, conn); err != nil {
			c.log.Warn("replica unreachable", zap.String("addr", ep.Addr()), zap.Error(err))
			_ = conn.Close()
			continue
		}
		host, err := c.canonical(ctx, ep.Host)
		if err != nil {
			c.log.Debug("replica host did not resolve, comparing raw", zap.String("host", ep.Host), zap.Error(err))
			host = ep.Host
		}
		replica, replicaEp, replicaHost = conn, ep, host
		break
	}

	var (
		master     *redis.Client
		masterHost string
		masterErr  = c.masterErr
	)
	if masterErr == nil {
		masterHost, masterErr = c.canonical(ctx, c.master.Host)
	}
	if masterErr == nil && replica != nil && masterHost == replicaHost && c.master.Port == replicaEp.Port {
		c.log.Info("master and replica are the same server", zap.String("addr", replicaEp.Addr()))
		c.detach(ctx, replica)
		return c.settle(StateStandalone, replica, replica, true), nil
	}
	if masterErr == nil {
		conn := c.opt.Dial(c.master.Addr())
		if err := c.ping(ctx, conn); err != nil {
			_ = conn.Close()
			masterErr = err
		} else {
			master = conn
		}
	}

	switch {
	case master != nil && replica != nil:
		octx, cancel := context.WithTimeout(ctx, c.opt.OpTimeout)
		target := c.replicaofTarget()
		err := replica.Do(octx, "REPLICAOF", target, strconv.Itoa(c.master.Port)).Err()
		cancel()
		if err != nil {
			c.log.Warn("replicaof failed", zap.String("replica", replicaEp.Addr()),
				zap.String("master", c.master.Addr()), zap.String("target", target), zap.Error(err))
		}
		return c.settle(StateReplicating, master, replica, true), nil
	case master != nil:
		c.log.Info("no replica reachable, using master for reads", zap.String("master", c.master.Addr()))
		return c.settle(StateStandalone, master, master, false), nil
	case replica != nil:
		c.log.Warn("master unreachable, promoting replica",
			zap.String("master", c.master.Addr()),
			zap.String("replica", replicaEp.Addr()),
			zap.Error(masterErr))
		c.detach(ctx, replica)
		return c.settle(StatePromoted, replica, replica, true), nil
	default:
		c.settle(StateUnavailable, nil, nil, false)
		return StateUnavailable, errors.Wrapf(ErrUnavailable, "master %s, %d replica(s)", c.master.Addr(), len(c.replicas))
	}
}

// settle installs the chosen connections and publishes the new state.
func (c *Client[K, V]) settle(st State, writer, reader *redis.Client, readerUp bool) State {
	c.writer, c.reader = writer, reader
	conn := Connectivity{State: st}
	switch st {
	case StateReplicating:
		conn.MasterConnected, conn.ReplicaConnected = true, true
	case StateStandalone:
		conn.MasterConnected, conn.ReplicaConnected, conn.Standalone = true, readerUp, true
	case StatePromoted:
		conn.ReplicaConnected, conn.Standalone = true, true
	}
	if writer != nil {
		conn.Master = writer.Options().Addr
	}
	if reader != nil {
		conn.Replica = reader.Options().Addr
	}

	prev := c.conn.State
	c.conn = conn
	if prev != st {
		c.log.Info("state changed", zap.Stringer("from", prev), zap.Stringer("to", st),
			zap.String("writer", conn.Master), zap.String("reader", conn.Replica))
		c.opt.Metrics.Transition(st.String())
	}
	return st
}

// replicaofTarget is the master host sent to replicas. The canonical
// loopback form only identifies the server locally; a replica on another
// machine needs an address it can dial.
func (c *Client[K, V]) replicaofTarget() string {
	if c.opt.MasterAdvertise != "" {
		return c.opt.MasterAdvertise
	}
	if !isLoopback(c.master.Host) {
		return c.master.Host
	}
	if ip := localAddress(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// detach stops replication on conn so it accepts writes.
func (c *Client[K, V]) detach(ctx context.Context, conn *redis.Client) {
	octx, cancel := context.WithTimeout(ctx, c.opt.OpTimeout)
	defer cancel()
	if err := conn.Do(octx, "REPLICAOF", "NO", "ONE").Err(); err != nil {
		c.log.Warn("replicaof no one failed", zap.String("addr", conn.Options().Addr), zap.Error(err))
	}
}

func (c *Client[K, V]) ping(ctx context.Context, conn *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, c.opt.ConnectTimeout)
	defer cancel()
	return conn.Ping(ctx).Err()
}

func (c *Client[K, V]) canonical(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opt.ConnectTimeout)
	defer cancel()
	return Canonicalize(ctx, c.opt.Resolver, host)
}

// closeConnsLocked closes the current connections (once when shared).
func (c *Client[K, V]) closeConnsLocked() error {
	var err error
	if c.writer != nil {
		err = c.writer.Close()
	}
	if c.reader != nil && c.reader != c.writer {
		err = errors.CombineErrors(err, c.reader.Close())
	}
	c.writer, c.reader = nil, nil
	return err
}
