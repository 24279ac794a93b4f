package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgkafka "github.com/ncsyvn/microservices-go/pkg/kafka"
)

func TestLoopback_RoutesToHandler(t *testing.T) {
	lb := NewLoopback(newTestLogger())
	var got []string
	lb.Handle(TopicOTPRequested, func(_ context.Context, e *pkgkafka.Event) error {
		got = append(got, e.AggregateID)
		return nil
	})

	p := NewProducer(lb, newTestLogger())
	require.NoError(t, p.PublishOTPRequested(context.Background(), testUser()))
	require.NoError(t, p.PublishUserRegistered(context.Background(), testUser()))

	assert.Equal(t, []string{"u1"}, got)
	assert.NoError(t, lb.Close())
}

func TestLoopback_DispatchesOTP(t *testing.T) {
	user := testUser()
	user.OTPTTL = 1_700_000_100
	d, sender, _ := newDispatcherFixture(t, user)

	lb := NewLoopback(newTestLogger())
	lb.Handle(TopicOTPRequested, d.Handle)

	require.NoError(t, NewProducer(lb, newTestLogger()).PublishOTPRequested(context.Background(), user))
	assert.Equal(t, []sent{{phone: user.Phone, otp: "123456"}}, sender.sent)
}
