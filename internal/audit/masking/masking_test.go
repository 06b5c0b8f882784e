package masking

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                                    "",
		"   ":                                 "",
		"fk_00112233445566778899aabbccddeeff": "fk_****eeff",
		"fk_short":                            "fk_****",
		"noprefixbutlongenough":               "****ough",
		"trailing_":                           "****ing_",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
