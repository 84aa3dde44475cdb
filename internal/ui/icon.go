package ui

// iconBytes is the 16x16 PNG shown in the system tray.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x33, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0xa0, 0x06, 0x50,
	0x33, 0xb2, 0xf8, 0x4f, 0x0e, 0x1e, 0x82, 0x06, 0x80, 0x00, 0x59, 0x06,
	0x20, 0x03, 0x92, 0x0c, 0xc0, 0x06, 0x88, 0x32, 0x00, 0x1f, 0xa0, 0x8f,
	0x01, 0x14, 0x7b, 0x81, 0x6a, 0x81, 0x48, 0xb5, 0x68, 0x1c, 0x02, 0x49,
	0x99, 0x12, 0x00, 0x00, 0xe4, 0xf7, 0x7f, 0x2c, 0x6e, 0x7e, 0xd4, 0x79,
	0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
