package metrics

import (
	"errors"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

func asDelivery(err error) (*dispatch.DeliveryError, bool) {
	var de *dispatch.DeliveryError
	ok := errors.As(err, &de)
	return de, ok
}
