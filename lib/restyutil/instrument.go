package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// InstrumentClient dumps every completed request/response pair made by client to output,
// named "<prefix>-<n>.txt". A nil output makes this a no-op.
func InstrumentClient(client *resty.Client, prefix string, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&idcounter, 1)
		output.Write(fmt.Sprintf("%s-%d.txt", prefix, id), formatHttpMessage(res))
		return nil
	})
}
