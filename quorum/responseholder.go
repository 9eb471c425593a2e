package quorum

type ResponseHolder struct {
	Nacks map[int32]struct{}
	Acks  map[int32]struct{}
}

func (qrm *ResponseHolder) clear() {
	qrm.Nacks = make(map[int32]struct{})
	qrm.Acks = make(map[int32]struct{})
}

func (qrm *ResponseHolder) addAck(aid int32) {
	qrm.Acks[aid] = struct{}{}
}

func (qrm *ResponseHolder) addNack(aid int32) {
	qrm.Nacks[aid] = struct{}{}
}

func (qrm *ResponseHolder) getAcks() map[int32]struct{} {
	return qrm.Acks
}

func (qrm *ResponseHolder) getNacks() map[int32]struct{} {
	return qrm.Nacks
}
