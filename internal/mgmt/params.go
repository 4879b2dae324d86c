package mgmt

// regSelfParams carries the single prefix a FRIENDLY local client asks
// to be registered as a consumer of (spec.md §6 "register requester as
// consumer of a prefix").
type regSelfParams struct {
	Prefix string `schema:"prefix,required"`
}

// newfaceParams carries the parameters of an outbound face request
// (spec.md §6 "create outbound face (udp/tcp, addr, port)").
type newfaceParams struct {
	Network string `schema:"network,required"` // "tcp" or "udp"
	Addr    string `schema:"addr,required"`
	Port    int    `schema:"port,required"`
}

// prefixregParams carries a faceid-to-prefix binding (spec.md §6 "bind
// a faceid to a prefix with flags + lifetime").
type prefixregParams struct {
	Prefix   string `schema:"prefix,required"`
	FaceID   uint64 `schema:"faceid,required"`
	Flags    uint8  `schema:"flags"`
	Lifetime int    `schema:"lifetime"`
}
