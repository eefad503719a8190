package daemon

import (
	"golang.org/x/sys/unix"

	"rockerboo/yac-bridge/internal/wire"
)

type sourceKind int

const (
	sourceListener sourceKind = iota
	sourceClient
	sourceLSP
	sourcePicker
)

// source resolves one poll-set entry back to what it belongs to.
type source struct {
	kind     sourceKind
	clientID wire.ClientID
	lspKey   string
}

// buildPollSet assembles the poll() argument from every fd the daemon
// currently owns: listener, client sockets, LSP stdouts, and the picker
// subprocess's stdout if scanning — spec.md §4.6 step 1.
func (d *Daemon) buildPollSet() ([]unix.PollFd, []source) {
	var fds []unix.PollFd
	var sources []source

	fds = append(fds, unix.PollFd{Fd: int32(d.listenerFD), Events: unix.POLLIN})
	sources = append(sources, source{kind: sourceListener})

	for id, conn := range d.clients {
		fd, err := conn.FD()
		if err != nil {
			continue
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		sources = append(sources, source{kind: sourceClient, clientID: id})
	}

	for _, c := range d.registry.All() {
		fds = append(fds, unix.PollFd{Fd: int32(c.Stdout.Fd()), Events: unix.POLLIN})
		sources = append(sources, source{kind: sourceLSP, lspKey: c.Key})
	}

	if d.picker.Scanning() {
		if fd, ok := d.picker.FD(); ok {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			sources = append(sources, source{kind: sourcePicker})
		}
	}

	return fds, sources
}
