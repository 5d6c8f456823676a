// Package netutil provides network utility functions for browserenv.
// Its central type, PortAllocator, hands out local TCP ports from a bounded
// range using a rotating cursor and a bind probe on the loopback interface.
// The probe is advisory: a port found free may be taken by another process
// before the browser binds it.
package netutil
