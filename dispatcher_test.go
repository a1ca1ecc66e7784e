package mpfec_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	mpfec "github.com/klingenchristopher/5G-FEC"
	"github.com/klingenchristopher/5G-FEC/internal/mocks"
)

var _ = Describe("Dispatcher", func() {
	var (
		mockCtrl  *gomock.Controller
		transport *mocks.MockTransport
		ctrl      *mpfec.Controller
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		transport = mocks.NewMockTransport(mockCtrl)

		var err error
		ctrl, err = mpfec.NewController(mpfec.Config{DefaultK: 2, DefaultM: 1, BlockSize: 100})
		Expect(err).ToNot(HaveOccurred())
		ctrl.AddPath(mpfec.PathState{PathID: 0, RTTMs: 20, LossRate: 0.01, BandwidthMbps: 100})
		ctrl.AddPath(mpfec.PathState{PathID: 1, RTTMs: 25, LossRate: 0.01, BandwidthMbps: 100})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("dispatches every frame of a sealed group", func() {
		transport.EXPECT().SetReceiveCallback(gomock.Any())
		transport.EXPECT().SetPathEventCallback(gomock.Any())
		d := mpfec.NewDispatcher(ctrl, transport, nil)
		transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ mpfec.PathID, payload []byte) (int, error) {
				return len(payload), nil
			}).Times(3)
		Expect(d.Send(make([]byte, 200), 0)).To(Succeed())
		Expect(d.QueuedPackets()).To(BeZero())
	})

	It("queues dropped frames and retries them on the next tick", func() {
		transport.EXPECT().SetReceiveCallback(gomock.Any())
		transport.EXPECT().SetPathEventCallback(gomock.Any())
		d := mpfec.NewDispatcher(ctrl, transport, nil)
		// the transport swallows one frame
		gomock.InOrder(
			transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ mpfec.PathID, payload []byte) (int, error) {
					return len(payload), nil
				}).Times(2),
			transport.EXPECT().Send(gomock.Any(), gomock.Any()).Return(0, nil),
		)
		Expect(d.Send(make([]byte, 200), 0)).To(Succeed())
		Expect(d.QueuedPackets()).To(Equal(1))

		transport.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ mpfec.PathID, payload []byte) (int, error) {
				return len(payload), nil
			}).AnyTimes()
		Expect(d.Tick()).To(Succeed())
		Expect(d.QueuedPackets()).To(BeZero())
	})

	It("delivers recovered payloads through the callback", func() {
		var received func(mpfec.PathID, []byte)
		sinkCtrl := gomock.NewController(GinkgoT())
		sinkTransport := mocks.NewMockTransport(sinkCtrl)
		sinkTransport.EXPECT().SetReceiveCallback(gomock.Any()).Do(
			func(cb func(mpfec.PathID, []byte)) { received = cb })
		sinkTransport.EXPECT().SetPathEventCallback(gomock.Any())

		sink, err := mpfec.NewController(mpfec.Config{DefaultK: 2, DefaultM: 1, BlockSize: 100})
		Expect(err).ToNot(HaveOccurred())
		in := mpfec.NewDispatcher(sink, sinkTransport, nil)
		var delivered [][]byte
		in.OnRecovered = func(p []byte) { delivered = append(delivered, p) }

		metas, err := ctrl.SendStreamData(make([]byte, 200), 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(metas).To(HaveLen(3))
		// lose the first source frame; repair coverage fills the hole
		for _, m := range metas[1:] {
			received(m.PathID, m.Frame.Serialize())
		}
		Expect(delivered).To(HaveLen(2))
	})
})
