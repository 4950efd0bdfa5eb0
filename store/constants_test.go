package store

const (
	testAlice   = "alice"
	testBob     = "bob"
	testBobName = "Bob"
	testGroupID = "alice_study"
)
