package async

const (
	testAlice     = "alice"
	testAliceName = "Alice"
	testBob       = "bob"
	testCarol     = "carol"
	testGroupID   = "alice_study"
	testGroupName = "Study"
)
