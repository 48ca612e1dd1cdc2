package protocol

// Record is one decoded telemetry packet. Which measurement fields are
// meaningful depends on Type.
type Record struct {
	Type     uint16 // FlagEncrypted cleared
	DeviceID uint64
	PartID   uint32
	Seq      uint32
	SensorID uint16

	// TypeClimate, TypeClimateExt
	Temperature float32 // °C
	Humidity    float32 // %RH

	// TypeClimateExt
	Battery float32 // volts
	Serial  uint32  // sensor serial number

	// TypeMotion: acceleration in mg, magnetic field in mG
	Accel [3]int16
	Mag   [3]int16
}

// BodySize returns the encoded size of a record body (everything after the
// type tag) for a type, flag ignored.
func BodySize(typ uint16) (int, bool) {
	switch typ & TypeMask {
	case TypeMotion:
		return HeaderSize + 12, true
	case TypeClimate:
		return HeaderSize + 8, true
	case TypeClimateExt:
		return HeaderSize + 16, true
	default:
		return 0, false
	}
}

// Encode writes the record body, without type tag.
func (r *Record) Encode(w *Writer) error {
	if _, ok := BodySize(r.Type); !ok {
		return ErrUnknownType
	}

	w.PutU64(r.DeviceID)
	w.PutU32(r.PartID)
	w.PutU32(r.Seq)
	w.PutU16(r.SensorID)

	switch r.Type & TypeMask {
	case TypeMotion:
		for _, v := range r.Accel {
			w.PutI16(v)
		}
		for _, v := range r.Mag {
			w.PutI16(v)
		}
	case TypeClimate:
		w.PutF32(r.Temperature)
		w.PutF32(r.Humidity)
	case TypeClimateExt:
		w.PutF32(r.Temperature)
		w.PutF32(r.Humidity)
		w.PutF32(r.Battery)
		w.PutU32(r.Serial)
	}

	if w.Overflow() {
		return ErrTooLarge
	}
	return nil
}

// DecodeRecord interprets body as the fields of typ. The body length must
// match the type exactly.
func DecodeRecord(typ uint16, body []byte) (Record, error) {
	typ &= TypeMask
	size, ok := BodySize(typ)
	if !ok {
		return Record{}, ErrUnknownType
	}
	if len(body) != size {
		return Record{}, ErrLength
	}

	rd := NewReader(body)
	rec := Record{
		Type:     typ,
		DeviceID: rd.U64(),
		PartID:   rd.U32(),
		Seq:      rd.U32(),
		SensorID: rd.U16(),
	}

	switch typ {
	case TypeMotion:
		for i := range rec.Accel {
			rec.Accel[i] = rd.I16()
		}
		for i := range rec.Mag {
			rec.Mag[i] = rd.I16()
		}
	case TypeClimate:
		rec.Temperature = rd.F32()
		rec.Humidity = rd.F32()
	case TypeClimateExt:
		rec.Temperature = rd.F32()
		rec.Humidity = rd.F32()
		rec.Battery = rd.F32()
		rec.Serial = rd.U32()
	}

	if err := rd.Err(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
