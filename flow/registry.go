package flow

import (
	"net"

	"github.com/m-lab/tcpclass/tcpip"
)

// ObserverFactory builds the Observer that should receive a newly created
// Tracker's events. Called once per flow, at creation time.
type ObserverFactory func(Key) Observer

// Registry owns the active Trackers, keyed by connection, and applies the
// creation/teardown rules that decide which units start, feed, or end a
// flow.
//
// Grounded on original_source/run.cc and run2.cc's flowMap dispatch loops.
// When monitoredDst is nil, every unit sent by monitoredSrc is data and every
// other unit is an ack (run2.cc's rule), so traffic between two other hosts
// is not filtered out; otherwise only units between the exact pair are
// routed and the rest are dropped (run.cc's stricter rule).
type Registry struct {
	monitoredSrc, monitoredDst net.IP
	flows                      map[Key]*Tracker
	newObserver                ObserverFactory
}

// NewRegistry builds an empty Registry. monitoredDst may be nil.
func NewRegistry(monitoredSrc, monitoredDst net.IP, newObserver ObserverFactory) *Registry {
	return &Registry{
		monitoredSrc: monitoredSrc,
		monitoredDst: monitoredDst,
		flows:        make(map[Key]*Tracker),
		newObserver:  newObserver,
	}
}

// Active returns the number of flows currently tracked.
func (r *Registry) Active() int { return len(r.flows) }

// CloseAll tears down every flow still live, in the order end-of-trace
// requires: each one's Observer gets a final OnClose so it can emit
// whatever summary it has accumulated, exactly as a mid-trace FIN/RST
// teardown would.
//
// Grounded on original_source/run2.cc's end-of-capture cleanup, which
// destroys the remaining flowMap entries and lets their destructors print.
func (r *Registry) CloseAll() {
	for key, tr := range r.flows {
		tr.obs.OnClose()
		delete(r.flows, key)
	}
}

// direction reports which way u travels relative to the monitored
// endpoints. Neither bool is set, and u should be dropped, only when
// monitoredDst is set and u matches neither direction; with monitoredDst nil
// every unit not sent by monitoredSrc is reported as an ack.
func (r *Registry) direction(u tcpip.Unit) (isData, isAck bool) {
	if r.monitoredDst == nil {
		if u.SrcIP.Equal(r.monitoredSrc) {
			return true, false
		}
		return false, true
	}
	if u.SrcIP.Equal(r.monitoredSrc) && u.DstIP.Equal(r.monitoredDst) {
		return true, false
	}
	if u.DstIP.Equal(r.monitoredSrc) && u.SrcIP.Equal(r.monitoredDst) {
		return false, true
	}
	return false, false
}

// Process routes one decoded unit to its flow, creating or tearing down the
// Tracker as the unit's flags dictate.
func (r *Registry) Process(u tcpip.Unit) {
	isData, isAck := r.direction(u)
	if !isData && !isAck {
		return
	}

	key := NewKey(u.SrcIP, u.DstIP, u.SrcPort, u.DstPort)
	tr, exists := r.flows[key]

	if isData {
		r.processData(key, tr, exists, u)
		return
	}
	r.processAck(key, tr, exists, u)
}

func (r *Registry) processData(key Key, tr *Tracker, exists bool, u tcpip.Unit) {
	if !exists {
		if u.FIN() || u.RST() {
			return
		}
		if u.SYN() || u.DataLength > 0 {
			tr = NewFromData(u, r.newObserver(key))
			r.flows[key] = tr
			tr.OnDataUnit(u)
		}
		return
	}

	switch {
	case u.DataLength > 0 || u.SYN():
		tr.OnDataUnit(u)
	case u.FIN() || u.RST():
		tr.obs.OnClose()
		delete(r.flows, key)
	}
}

func (r *Registry) processAck(key Key, tr *Tracker, exists bool, u tcpip.Unit) {
	if !exists {
		if u.SYN() {
			tr = NewFromAck(u, r.newObserver(key))
			r.flows[key] = tr
			tr.OnAckUnit(u)
		}
		return
	}

	if u.RST() {
		tr.obs.OnClose()
		delete(r.flows, key)
		return
	}
	tr.OnAckUnit(u)
}
