package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		want     bool
	}{
		{RequestStatusPaymentPending, RequestStatusPaid, true},
		{RequestStatusPaid, RequestStatusSubmitted, true},
		{RequestStatusSubmitted, RequestStatusProcessing, true},
		{RequestStatusProcessing, RequestStatusSent, true},
		{RequestStatusPaid, RequestStatusCancelled, true},
		{RequestStatusPaymentPending, RequestStatusSubmitted, false},
		{RequestStatusPaid, RequestStatusPaid, false},
		{RequestStatusSent, RequestStatusCancelled, false},
		{RequestStatusCancelled, RequestStatusPaid, false},
		{RequestStatusSubmitted, RequestStatusSent, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestAcceptsDestination(t *testing.T) {
	assert.True(t, RequestStatusPaid.AcceptsDestination())
	assert.True(t, RequestStatusSubmitted.AcceptsDestination())
	assert.False(t, RequestStatusPaymentPending.AcceptsDestination())
	assert.False(t, RequestStatusProcessing.AcceptsDestination())
}

func TestDirectoryProfileFullName(t *testing.T) {
	other := " Chidi "
	p := DirectoryProfile{Surname: "Okafor", FirstName: "Ada", OtherName: &other}
	assert.Equal(t, "Okafor Ada Chidi", p.FullName())

	empty := ""
	p.OtherName = &empty
	assert.Equal(t, "Okafor Ada", p.FullName())
}

func TestNormalizeMatric(t *testing.T) {
	assert.Equal(t, "CSC/2015/001", NormalizeMatric("  csc/2015/001 "))
}
