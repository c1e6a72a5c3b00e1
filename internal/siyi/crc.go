package siyi

import "github.com/sigurn/crc16"

// CRC16/XMODEM: poly 0x1021, init 0, no reflection, no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC16 returns the CRC16/XMODEM checksum of b.
func CRC16(b []byte) uint16 { return crc16.Checksum(b, crcTable) }

// UpdateCRC16 continues a running checksum with more data.
func UpdateCRC16(crc uint16, b []byte) uint16 { return crc16.Update(crc, b, crcTable) }

// VerifyCRC16 reports whether sum is the checksum of b.
func VerifyCRC16(b []byte, sum uint16) bool { return CRC16(b) == sum }

