package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"voicekb/internal/capture"
)

// ListDevices prints input devices. list is usually capture.Devices.
func ListDevices(w io.Writer, list func() ([]capture.Device, error)) error {
	devices, err := list()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no input devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tCHANNELS\tRATE\tHOST API\t")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%d\t%.0f\t%s\t\n", d.Index, mark, d.Name, d.Channels, d.DefaultSampleRate, d.HostAPI)
	}
	return tw.Flush()
}
