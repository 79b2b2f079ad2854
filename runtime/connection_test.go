package runtime

import (
	"context"
	"testing"

	"github.com/RACOAI-Official/ems-realtime/domain/event"
	"github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/stretchr/testify/require"
)

func Test_Connection_Preserves_Emission_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := NewConnection("u1", 4)

	req.NoError(c.Consume(ctx, event.NewUpdateContacts()))
	req.NoError(c.Consume(ctx, event.NewStatusUpdate("u2", true)))

	first := <-c.Events()
	second := <-c.Events()
	req.Equal(event.NameUpdateContacts, first.Name)
	req.Equal(event.NameStatusUpdate, second.Name)
}

func Test_Connection_Full_Buffer_Drops(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := NewConnection("u1", 1)

	req.NoError(c.Consume(ctx, event.NewUpdateContacts()))
	err := c.Consume(ctx, event.NewUpdateContacts())
	req.Error(err, "a slow client drops instead of blocking the emitter")
}

func Test_Connection_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	c := NewConnection("u1", 1)

	c.Close()
	c.Close()

	err := c.Consume(context.Background(), event.NewUpdateContacts())
	req.ErrorIs(err, errors.ErrConnectionClosed)
}
