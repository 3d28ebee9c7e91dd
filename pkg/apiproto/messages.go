package apiproto

// GetInfoArgs carries no fields; DTN_GETINFO takes none.
type GetInfoArgs struct{}

func (a *GetInfoArgs) Decode(data []byte) error { return nil }

// GetInfoResult reports the node's own singleton EID.
type GetInfoResult struct {
	LocalEID string
}

func (r *GetInfoResult) Encode() ([]byte, error) { return marshal(r) }
func DecodeGetInfoResult(data []byte) (*GetInfoResult, error) {
	r := &GetInfoResult{}
	return r, unmarshal(data, r)
}

// RegisterArgs is the DTN_REGISTER payload: bind an endpoint pattern to a
// new registration with the given failure policy.
type RegisterArgs struct {
	Endpoint      string
	FailureAction uint32
	Script        string
	Expiration    uint64
}

func (a *RegisterArgs) Encode() ([]byte, error)    { return marshal(a) }
func (a *RegisterArgs) Decode(data []byte) error   { return unmarshal(data, a) }
func DecodeRegisterArgs(data []byte) (*RegisterArgs, error) {
	a := &RegisterArgs{}
	return a, a.Decode(data)
}

// RegisterResult returns the assigned registration id.
type RegisterResult struct {
	RegID uint64
}

func (r *RegisterResult) Encode() ([]byte, error) { return marshal(r) }
func DecodeRegisterResult(data []byte) (*RegisterResult, error) {
	r := &RegisterResult{}
	return r, unmarshal(data, r)
}

// BindArgs is the DTN_BIND payload: attach the calling session to an
// existing registration so its deferred queue starts draining to it.
type BindArgs struct {
	RegID uint64
}

func (a *BindArgs) Encode() ([]byte, error) { return marshal(a) }
func DecodeBindArgs(data []byte) (*BindArgs, error) {
	a := &BindArgs{}
	return a, unmarshal(data, a)
}

// BindResult is empty; a successful response with no payload is the ack.
type BindResult struct{}

func (r *BindResult) Encode() ([]byte, error) { return marshal(r) }

// SendArgs is the DTN_SEND payload: submit a new bundle for forwarding.
// Payload carries the bytes inline; PayloadFile, when non-empty, names a
// path the daemon reads instead (spec §6: "payload-in-file transfers
// reference a path the daemon reads").
type SendArgs struct {
	Source          string
	Destination     string
	ReplyTo         string
	Lifetime        uint64
	Priority        uint32
	DeliveryOptions uint32
	Payload         []byte
	PayloadFile     string
}

func (a *SendArgs) Encode() ([]byte, error) { return marshal(a) }
func DecodeSendArgs(data []byte) (*SendArgs, error) {
	a := &SendArgs{}
	return a, unmarshal(data, a)
}

// SendResult identifies the accepted bundle by its source-and-creation
// identity, the only stable cross-node handle a bundle has.
type SendResult struct {
	BundleID string
}

func (r *SendResult) Encode() ([]byte, error) { return marshal(r) }
func DecodeSendResult(data []byte) (*SendResult, error) {
	r := &SendResult{}
	return r, unmarshal(data, r)
}

// RecvArgs is the DTN_RECV payload: block (up to TimeoutMs) for the next
// bundle queued on RegID.
type RecvArgs struct {
	RegID     uint64
	TimeoutMs uint64
}

func (a *RecvArgs) Encode() ([]byte, error) { return marshal(a) }
func DecodeRecvArgs(data []byte) (*RecvArgs, error) {
	a := &RecvArgs{}
	return a, unmarshal(data, a)
}

// RecvResult is the delivered bundle's identity and payload bytes.
type RecvResult struct {
	Source       string
	Destination  string
	CreationSecs uint64
	CreationSeq  uint64
	Payload      []byte
}

func (r *RecvResult) Encode() ([]byte, error) { return marshal(r) }
func DecodeRecvResult(data []byte) (*RecvResult, error) {
	r := &RecvResult{}
	return r, unmarshal(data, r)
}

// CloseArgs is the DTN_CLOSE payload: release RegID, dropping its binding
// and deferred queue.
type CloseArgs struct {
	RegID uint64
}

func (a *CloseArgs) Encode() ([]byte, error) { return marshal(a) }
func DecodeCloseArgs(data []byte) (*CloseArgs, error) {
	a := &CloseArgs{}
	return a, unmarshal(data, a)
}

// CloseResult is empty; a successful response is the ack.
type CloseResult struct{}

func (r *CloseResult) Encode() ([]byte, error) { return marshal(r) }
