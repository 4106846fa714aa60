package event

// Init fires once per module immediately after it is loaded.
type Init struct{}

func (Init) EventName() string { return "init" }
func (Init) sealed()           {}

// Cron fires on a scheduled timer tick.
type Cron struct {
	Tag       string
	Scheduled bool
}

func (Cron) EventName() string { return "on_cron" }
func (Cron) sealed()           {}

// CardanoBlock delivers a new block from the chain follower (Component J).
type CardanoBlock struct {
	Network string
	Slot    uint64
	Hash    [32]byte
	Raw     []byte
}

func (CardanoBlock) EventName() string { return "on_cardano_block" }
func (CardanoBlock) sealed()           {}

// CardanoRollback carries the ancestor point a subscriber must rewind to.
type CardanoRollback struct {
	Network string
	ToSlot  uint64
	ToHash  [32]byte
}

func (CardanoRollback) EventName() string { return "on_cardano_rollback" }
func (CardanoRollback) sealed()           {}

// CardanoImmutableRollForward reports the immutable tip advancing.
type CardanoImmutableRollForward struct {
	Network string
	Slot    uint64
}

func (CardanoImmutableRollForward) EventName() string { return "on_cardano_immutable_roll_forward" }
func (CardanoImmutableRollForward) sealed()            {}

// CardanoTxn delivers an individual transaction within a followed block —
// supplemented from the original implementation's guest ABI (SPEC_FULL.md
// §12); spec.md's distillation only names the block-level export.
type CardanoTxn struct {
	Network string
	Slot    uint64
	TxIndex int
	Raw     []byte
}

func (CardanoTxn) EventName() string { return "on_cardano_txn" }
func (CardanoTxn) sealed()           {}

// Topic delivers an IPFS pubsub message to the subscribing app.
type Topic struct {
	Topic   string
	Message []byte
}

func (Topic) EventName() string { return "on_topic" }
func (Topic) sealed()           {}

// KvUpdate notifies a module that a key it watches changed.
type KvUpdate struct {
	Key   string
	Value []byte
}

func (KvUpdate) EventName() string { return "kv_update" }
func (KvUpdate) sealed()           {}

// HttpGatewayReply is the inbound-HTTP-request event delivered to a
// business module by the HTTP gateway (Component M).
type HttpGatewayReply struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

func (HttpGatewayReply) EventName() string { return "reply" }
func (HttpGatewayReply) sealed()           {}

// HttpAuthValidate is sent to an app's dedicated auth module ahead of a
// gateway dispatch when the route's auth policy is not None.
type HttpAuthValidate struct {
	Method  string
	Path    string
	Headers map[string]string
}

func (HttpAuthValidate) EventName() string { return "validate_auth" }
func (HttpAuthValidate) sealed()           {}

// HttpResponse delivers the result of an outbound http-request capability
// call back to the module that issued it.
type HttpResponse struct {
	RequestID uint32
	Status    int
	Headers   map[string]string
	Body      []byte
}

func (HttpResponse) EventName() string { return "on_http_response" }
func (HttpResponse) sealed()           {}

// Test and Bench drive the module's self-test / benchmark exports.
type Test struct{ Name string }

func (Test) EventName() string { return "test" }
func (Test) sealed()           {}

type Bench struct{ Name string }

func (Bench) EventName() string { return "bench" }
func (Bench) sealed()           {}
