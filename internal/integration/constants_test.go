package integration_test

const (
	TestShowId      = 1
	TestUnknownShow = 999

	TestFirstUserId  = 1
	TestSecondUserId = 2
	TestThirdUserId  = 3

	TestNormalSeatId = 1
	TestVipSeatId    = 2
)
