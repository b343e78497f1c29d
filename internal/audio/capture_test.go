package audio

import (
	"regexp"
	"testing"
)

func TestSelectInput(t *testing.T) {
	vive := regexp.MustCompile(`(?i)vive`)

	tests := []struct {
		name    string
		devices []Device
		hint    *regexp.Regexp
		want    string
		wantErr bool
	}{
		{
			name:    "no devices",
			devices: nil,
			hint:    vive,
			wantErr: true,
		},
		{
			name: "no inputs",
			devices: []Device{
				{ID: "spk", Name: "Speakers", Kind: DeviceOutput},
			},
			hint:    vive,
			wantErr: true,
		},
		{
			name: "first input when nothing else matches",
			devices: []Device{
				{ID: "a", Name: "Webcam Mic", Group: "usb", Kind: DeviceInput},
				{ID: "b", Name: "Line In", Group: "onboard", Kind: DeviceInput},
			},
			hint: vive,
			want: "a",
		},
		{
			name: "default input beats first",
			devices: []Device{
				{ID: "a", Name: "Webcam Mic", Group: "usb", Kind: DeviceInput},
				{ID: "b", Name: "Line In", Group: "onboard", Kind: DeviceInput, Default: true},
			},
			hint: vive,
			want: "b",
		},
		{
			name: "input grouped with hmd beats default",
			devices: []Device{
				{ID: "spk", Name: "VIVE Pro Audio", Group: "hmd", Kind: DeviceOutput},
				{ID: "onboard", Name: "Line In", Group: "onboard", Kind: DeviceInput, Default: true},
				{ID: "hmdmic", Name: "Headset Microphone", Group: "hmd", Kind: DeviceInput},
			},
			hint: vive,
			want: "hmdmic",
		},
		{
			name: "hint match is case insensitive on the input itself",
			devices: []Device{
				{ID: "onboard", Name: "Line In", Group: "onboard", Kind: DeviceInput, Default: true},
				{ID: "hmdmic", Name: "Vive Microphone", Group: "hmd", Kind: DeviceInput},
			},
			hint: vive,
			want: "hmdmic",
		},
		{
			name: "nil hint falls back to default",
			devices: []Device{
				{ID: "hmdmic", Name: "Vive Microphone", Group: "hmd", Kind: DeviceInput},
				{ID: "onboard", Name: "Line In", Group: "onboard", Kind: DeviceInput, Default: true},
			},
			hint: nil,
			want: "onboard",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectInput(tc.devices, tc.hint)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectInput: %v", err)
			}
			if got.ID != tc.want {
				t.Errorf("selected %s, want %s", got.ID, tc.want)
			}
		})
	}
}
