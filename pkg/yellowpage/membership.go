package yellowpage

import "sort"

// MembershipView is an immutable snapshot of the current set of live
// peers, sorted lexicographically so that any two observers with the
// same liveness set compute identical consistent-hashing input.
type MembershipView struct {
	LiveNodes []NodeID
	// SelfIndex is the position of the local node within LiveNodes, or -1
	// if self has not yet been observed as Live (only possible briefly at
	// startup).
	SelfIndex int
}

// recomputeMembershipLocked rebuilds the MembershipView from the current
// liveness table and publishes it to subscribers. Callers must already
// hold s.mu for writing.
func (s *Store) recomputeMembershipLocked() {
	live := make([]NodeID, 0, len(s.liveness))
	for id, rec := range s.liveness {
		if rec.verdict == Live {
			live = append(live, id)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })

	selfIndex := -1
	for i, id := range live {
		if id == s.selfID {
			selfIndex = i
			break
		}
	}

	s.membership = MembershipView{LiveNodes: live, SelfIndex: selfIndex}
	s.metrics.setLiveNodes(len(live))
	s.membershipCh.publish(s.membership)
}

// liveNodesSnapshot returns the most recently computed MembershipView.
func (s *Store) liveNodesSnapshot() MembershipView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.membership
}

// membershipBroadcast is a one-to-many change-notification primitive,
// grounded on concurrency-and-channels/subscription.go's Topic/
// Subscription pair, adapted from that file's bounded backlog of
// discrete events to "coalesce on lag": every subscriber only ever sees
// the single newest MembershipView once it catches up, never a backlog
// (spec §4.6 / §9 "Change notifications").
type membershipBroadcast struct {
	closing chan chan error
	publishCh chan MembershipView
	subscribe chan chan (<-chan MembershipView)
	unsubscribe chan (<-chan MembershipView)
}

func newMembershipBroadcast() *membershipBroadcast {
	b := &membershipBroadcast{
		closing:     make(chan chan error),
		publishCh:   make(chan MembershipView, 1),
		subscribe:   make(chan chan (<-chan MembershipView)),
		unsubscribe: make(chan (<-chan MembershipView)),
	}
	go b.loop()
	return b
}

// loop owns the set of subscriber channels and fans out every published
// snapshot to each of them without blocking: a subscriber channel always
// has capacity 1, and a pending, not-yet-read value is overwritten with
// the newer one rather than queued, which is exactly the coalescing
// behavior spec §4.6 calls for.
func (b *membershipBroadcast) loop() {
	subs := map[chan MembershipView]struct{}{}
	var latest MembershipView
	var have bool

	for {
		select {
		case errc := <-b.closing:
			for ch := range subs {
				close(ch)
			}
			errc <- nil
			return

		case v := <-b.publishCh:
			latest = v
			have = true
			for ch := range subs {
				select {
				case ch <- v:
				default:
					// subscriber hasn't drained the previous value yet;
					// drop it and overwrite so it only ever sees latest.
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- v:
					default:
					}
				}
			}

		case reply := <-b.subscribe:
			ch := make(chan MembershipView, 1)
			if have {
				ch <- latest
			}
			subs[ch] = struct{}{}
			reply <- ch

		case stream := <-b.unsubscribe:
			for ch := range subs {
				if (<-chan MembershipView)(ch) == stream {
					delete(subs, ch)
					close(ch)
				}
			}
		}
	}
}

// publish hands v to the loop goroutine without ever blocking the
// caller (which holds s.mu): if a previous snapshot is still sitting in
// the buffered channel unread, it is dropped in favor of the newer one.
func (b *membershipBroadcast) publish(v MembershipView) {
	for {
		select {
		case b.publishCh <- v:
			return
		default:
			select {
			case <-b.publishCh:
			default:
			}
		}
	}
}

func (b *membershipBroadcast) close() error {
	errc := make(chan error)
	b.closing <- errc
	return <-errc
}

// Subscription streams MembershipView snapshots as the cluster's
// liveness set changes.
type Subscription interface {
	Updates() <-chan MembershipView
	Close()
}

type membershipSub struct {
	b      *membershipBroadcast
	stream <-chan MembershipView
}

func (s *membershipSub) Updates() <-chan MembershipView { return s.stream }

func (s *membershipSub) Close() {
	s.b.unsubscribe <- s.stream
}

func (b *membershipBroadcast) subscribeNew() Subscription {
	reply := make(chan (<-chan MembershipView))
	b.subscribe <- reply
	stream := <-reply
	return &membershipSub{b: b, stream: stream}
}
