package transport

const (
	testTopic   = "direct"
	testPayload = "hello mesh"
)
