package messaging

const (
	testAlice     = "alice"
	testAliceName = "Alice"
	testBob       = "bob"
	testBobName   = "Bob"
	testGroupID   = "alice_study"
	testGroupName = "Study"
)
