package udp

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		// RFC 1071 section 3 example: sum 0xddf2.
		{"rfc1071 example", []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}, 0x220d},
		{"odd length pads with zero", []byte{0x01, 0x02, 0x03}, ^uint16(0x0102 + 0x0300)},
		{"carry folds back", []byte{0xFF, 0xFF, 0x00, 0x02}, ^uint16(0x0002)},
		{"single word", []byte{0x12, 0x34}, ^uint16(0x1234)},
		{"sum of 0xffff becomes all ones", []byte{0xFF, 0xFF}, 0xFFFF},
		{"empty buffer becomes all ones", nil, 0xFFFF},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Checksum(tc.data); got != tc.want {
				t.Errorf("Checksum(% x) = 0x%04x, want 0x%04x", tc.data, got, tc.want)
			}
		})
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	data := make([]byte, 1001)
	for i := range data {
		data[i] = byte(i * 7)
	}

	first := Checksum(data)
	for i := 0; i < 10; i++ {
		if got := Checksum(data); got != first {
			t.Fatalf("Checksum() run %d = 0x%04x, want 0x%04x", i, got, first)
		}
	}
}

func TestChecksum_NeverZero(t *testing.T) {
	for hi := 0; hi < 256; hi++ {
		for lo := 0; lo < 256; lo++ {
			if Checksum([]byte{byte(hi), byte(lo)}) == 0 {
				t.Fatalf("Checksum(%02x %02x) = 0", hi, lo)
			}
		}
	}
}

func TestChecksum_MaxSizeNoOverflow(t *testing.T) {
	data := make([]byte, 1<<16)
	for i := range data {
		data[i] = 0xFF
	}

	// Every word is 0xffff, so the folded sum is 0xffff and the
	// complement is zero, which is sent as all ones.
	if got := Checksum(data); got != 0xFFFF {
		t.Errorf("Checksum(all ones) = 0x%04x, want 0xffff", got)
	}
}
