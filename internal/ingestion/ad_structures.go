package ingestion

import (
	"encoding/binary"
	"fmt"
)

// BLE AD structure type bytes.1 and the Bluetooth
// Core Specification's "Supplement to the Bluetooth Core Specification".
const (
	adTypeManufacturerData  byte = 0xFF
	adTypeServiceData16     byte = 0x16
	adTypeServiceData32     byte = 0x20
	adTypeServiceData128    byte = 0x21
)

// DecodeADStructures parses a concatenated sequence of BLE advertisement
// data structures (len|type|bytes) and extracts manufacturer-specific and
// service data, keyed by their little-endian-decoded company/UUID string.
// Structure types outside manufacturer-specific and service data are skipped.
func DecodeADStructures(payload []byte) (manufacturer map[string][]byte, service map[string][]byte, err error) {
	manufacturer = make(map[string][]byte)
	service = make(map[string][]byte)

	i := 0
	for i < len(payload) {
		length := int(payload[i])
		if length == 0 {
			i++
			continue
		}
		if i+1+length > len(payload) {
			return nil, nil, fmt.Errorf("ad structure at offset %d overruns payload", i)
		}
		adType := payload[i+1]
		body := payload[i+2 : i+1+length]

		switch adType {
		case adTypeManufacturerData:
			if len(body) < 2 {
				return nil, nil, fmt.Errorf("manufacturer data structure at offset %d too short", i)
			}
			companyID := binary.LittleEndian.Uint16(body[:2])
			manufacturer[fmt.Sprintf("0x%04x", companyID)] = append([]byte(nil), body[2:]...)
		case adTypeServiceData16:
			if len(body) < 2 {
				return nil, nil, fmt.Errorf("16-bit service data structure at offset %d too short", i)
			}
			uuid := binary.LittleEndian.Uint16(body[:2])
			service[fmt.Sprintf("%04x", uuid)] = append([]byte(nil), body[2:]...)
		case adTypeServiceData32:
			if len(body) < 4 {
				return nil, nil, fmt.Errorf("32-bit service data structure at offset %d too short", i)
			}
			uuid := binary.LittleEndian.Uint32(body[:4])
			service[fmt.Sprintf("%08x", uuid)] = append([]byte(nil), body[4:]...)
		case adTypeServiceData128:
			if len(body) < 16 {
				return nil, nil, fmt.Errorf("128-bit service data structure at offset %d too short", i)
			}
			service[uuid128LEToString(body[:16])] = append([]byte(nil), body[16:]...)
		}

		i += 1 + length
	}
	return manufacturer, service, nil
}

// EncodeManufacturerData packs one AD structure for manufacturer-specific
// data (type 0xFF), matching _encode_manufacturer_data.
func EncodeManufacturerData(companyID uint16, data []byte) []byte {
	body := make([]byte, 2+len(data))
	binary.LittleEndian.PutUint16(body[:2], companyID)
	copy(body[2:], data)
	return packADStructure(adTypeManufacturerData, body)
}

// EncodeServiceData16 packs one AD structure for 16-bit UUID service data
// (type 0x16).
func EncodeServiceData16(uuid uint16, data []byte) []byte {
	body := make([]byte, 2+len(data))
	binary.LittleEndian.PutUint16(body[:2], uuid)
	copy(body[2:], data)
	return packADStructure(adTypeServiceData16, body)
}

// EncodeServiceData128 packs one AD structure for 128-bit UUID service
// data (type 0x21); uuidBytes must be 16 bytes in little-endian order.
func EncodeServiceData128(uuidBytes [16]byte, data []byte) []byte {
	body := make([]byte, 16+len(data))
	copy(body[:16], uuidBytes[:])
	copy(body[16:], data)
	return packADStructure(adTypeServiceData128, body)
}

func packADStructure(adType byte, body []byte) []byte {
	out := make([]byte, 2+len(body))
	out[0] = byte(len(body) + 1)
	out[1] = adType
	copy(out[2:], body)
	return out
}

// uuid128LEToString converts 16 bytes_le-ordered bytes (as produced by
// Python's uuid.UUID.bytes_le) into the standard 8-4-4-4-12 UUID string.
// Only the first three fields (time_low, time_mid, time_hi_and_version)
// are byte-swapped in bytes_le form; clock_seq and node are unchanged.
func uuid128LEToString(b []byte) string {
	be := make([]byte, 16)
	be[0], be[1], be[2], be[3] = b[3], b[2], b[1], b[0]
	be[4], be[5] = b[5], b[4]
	be[6], be[7] = b[7], b[6]
	copy(be[8:], b[8:])
	return fmt.Sprintf("%x-%x-%x-%x-%x", be[0:4], be[4:6], be[6:8], be[8:10], be[10:16])
}
