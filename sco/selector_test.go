package sco_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/scolink/internal/accessory"
	"github.com/srg/scolink/sco"
)

type SelectorTestSuite struct {
	suite.Suite

	notifier *fakeNotifier
	selector *sco.Selector
}

func (suite *SelectorTestSuite) SetupTest() {
	suite.notifier = &fakeNotifier{accept: true}
	suite.selector = sco.NewSelector(suite.notifier, quietLogger())
}

func (suite *SelectorTestSuite) TestFirstDeviceNotifiesPlaceholderAdd() {
	dev := headsetDevice("AA:BB:CC:DD:EE:FF")

	reset := suite.selector.SetActive(dev)

	suite.False(reset)
	suite.Equal(dev, suite.selector.Active())
	suite.Equal([]notifyCall{{address: accessory.PlaceholderAddress, added: true}},
		suite.notifier.calls)
	suite.False(suite.selector.Routing().IsNone())
}

func (suite *SelectorTestSuite) TestRemovalNotifiesPlaceholderRemove() {
	dev := headsetDevice("AA:BB:CC:DD:EE:FF")
	suite.selector.SetActive(dev)

	reset := suite.selector.SetActive(nil)

	suite.True(reset)
	suite.Nil(suite.selector.Active())
	suite.Equal([]notifyCall{
		{address: accessory.PlaceholderAddress, added: true},
		{address: accessory.PlaceholderAddress, added: false},
	}, suite.notifier.calls)
	suite.True(suite.selector.Routing().IsNone())
}

func (suite *SelectorTestSuite) TestDeviceSwitchIsSilent() {
	first := headsetDevice("AA:BB:CC:DD:EE:01")
	second := headsetDevice("AA:BB:CC:DD:EE:02")
	suite.selector.SetActive(first)

	reset := suite.selector.SetActive(second)

	suite.False(reset)
	suite.Equal(second, suite.selector.Active())
	suite.Len(suite.notifier.calls, 1, "the logical path never went away")
}

func (suite *SelectorTestSuite) TestPairPrimarySwitchKeepsDescriptor() {
	left := pairedDevice("AA:AA:AA:AA:AA:01", "AA:AA:AA:AA:AA:02")
	right := pairedDevice("AA:AA:AA:AA:AA:02", "AA:AA:AA:AA:AA:01")
	suite.selector.SetActive(left)

	reset := suite.selector.SetActive(right)

	suite.False(reset)
	suite.Equal(left, suite.selector.Active(),
		"the original member stays so tear-down fires once the pair goes inactive")
	suite.Len(suite.notifier.calls, 1)
}

func (suite *SelectorTestSuite) TestSameDeviceIsNoOp() {
	dev := headsetDevice("AA:BB:CC:DD:EE:FF")
	suite.selector.SetActive(dev)

	reset := suite.selector.SetActive(headsetDevice("AA:BB:CC:DD:EE:FF"))

	suite.False(reset)
	suite.Len(suite.notifier.calls, 1)
}

func (suite *SelectorTestSuite) TestAddFailureRejectsTarget() {
	suite.notifier.accept = false

	reset := suite.selector.SetActive(headsetDevice("AA:BB:CC:DD:EE:FF"))

	suite.True(reset, "the rejected target leaves no active accessory")
	suite.Nil(suite.selector.Active())
	suite.True(suite.selector.Routing().IsNone())
}

func (suite *SelectorTestSuite) TestRemoveFailureStillRemoves() {
	dev := headsetDevice("AA:BB:CC:DD:EE:FF")
	suite.selector.SetActive(dev)
	suite.notifier.accept = false

	reset := suite.selector.SetActive(nil)

	suite.True(reset)
	suite.Nil(suite.selector.Active())
	suite.True(suite.selector.Routing().IsNone())
}

func (suite *SelectorTestSuite) TestNilToNilIsNoOp() {
	reset := suite.selector.SetActive(nil)

	suite.False(reset)
	suite.Empty(suite.notifier.calls)
}

func TestSelectorTestSuite(t *testing.T) {
	suite.Run(t, new(SelectorTestSuite))
}
