package mrtreader

import "errors"

var (
	ErrShort   = errors.New("mrtreader: record too short")
	ErrMarker  = errors.New("mrtreader: bad BGP marker")
	ErrPeer    = errors.New("mrtreader: unknown peer index")
	ErrNoTable = errors.New("mrtreader: RIB record before PEER_INDEX_TABLE")
	ErrAttrs   = errors.New("mrtreader: malformed path attributes")
)
