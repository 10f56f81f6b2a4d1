package fatigue

import (
	"math"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynopt/internal/biomech"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
	"github.com/san-kum/dynopt/internal/nlp"
	"github.com/san-kum/dynopt/internal/physics"
)

func phaseFor(reg *Registry, model biomech.Model) *nlp.Phase {
	Expect(reg.Validate()).To(Succeed())
	states, err := nlp.StateLayout(model.NbQ(), reg.StateBlocks()...)
	Expect(err).NotTo(HaveOccurred())
	var blocks []nlp.Block
	if !reg.SplitsControls(FamilyTau) {
		blocks = append(blocks, nlp.Block{Name: nlp.BlockTau, Size: model.NbTau()})
	}
	controls, err := nlp.NewLayout(append(blocks, reg.ControlBlocks()...)...)
	Expect(err).NotTo(HaveOccurred())
	phase, err := nlp.NewPhase(0, nlp.PhaseSpec{Model: model, NShooting: 4, FinalTime: 1, States: states, Controls: controls})
	Expect(err).NotTo(HaveOccurred())
	return phase
}

func bind(env expr.Env, v expr.Vector, vals ...float64) {
	vars, err := v.Vars()
	Expect(err).NotTo(HaveOccurred())
	Expect(vals).To(HaveLen(len(vars)))
	for i, s := range vars {
		env[s.Name()] = vals[i]
	}
}

func rhs(reg *Registry, phase *nlp.Phase) expr.Vector {
	states, err := phase.StateVariables(phase.SymX)
	Expect(err).NotTo(HaveOccurred())
	controls, err := phase.ControlVariables(phase.SymU)
	Expect(err).NotTo(HaveOccurred())
	out, err := reg.Dynamics(expr.Zeros(phase.NX()), phase, states, controls)
	Expect(err).NotTo(HaveOccurred())
	return out
}

var _ = Describe("Xia", func() {
	var (
		reg   *Registry
		phase *nlp.Phase
	)

	BeforeEach(func() {
		reg = NewRegistry()
		Expect(reg.Add(NewXia(10, 10, 0.01, 0.002, 1), -1, false)).To(Succeed())
		phase = phaseFor(reg, physics.NewPendulum())
	})

	It("lays out its compartments after q and qdot", func() {
		Expect(phase.States.Blocks()).To(Equal([]nlp.Block{
			{Name: "q", Size: 1}, {Name: "qdot", Size: 1},
			{Name: "tau_ma", Size: 1}, {Name: "tau_mr", Size: 1}, {Name: "tau_mf", Size: 1},
		}))
	})

	It("recruits resting units when the load exceeds the active ones", func() {
		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0.2, 0.8, 0)
		bind(env, phase.SymU, 0.5)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[:2]).To(Equal([]float64{0, 0}))
		Expect(got[2]).To(BeNumerically("~", 3-0.002, 1e-12))
		Expect(got[3]).To(BeNumerically("~", -3, 1e-12))
		Expect(got[4]).To(BeNumerically("~", 0.002, 1e-12))
	})

	It("is limited by the resting units left", func() {
		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0.2, 0.1, 0.7)
		bind(env, phase.SymU, 0.9)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[2]).To(BeNumerically("~", 10*0.1-0.01*0.2, 1e-12))
	})

	It("relaxes when the load drops below the active units", func() {
		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0.5, 0.5, 0)
		bind(env, phase.SymU, -0.2)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[2]).To(BeNumerically("~", 10*(0.2-0.5)-0.01*0.5, 1e-12))
	})

	It("conserves the total of the compartments", func() {
		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0.3, 0.4, 0.3)
		bind(env, phase.SymU, 0.8)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[2] + got[3] + got[4]).To(BeNumerically("~", 0, 1e-12))
	})
})

var _ = Describe("Aggregator", func() {
	minus := func() *Xia { return NewXia(10, 10, 0.01, 0.002, -2) }
	plus := func() *Xia { return NewXia(10, 10, 0.01, 0.002, 3) }

	It("resolves channel indices in declaration order", func() {
		agg, err := NewTauSplit(minus(), plus(), false, true)
		Expect(err).NotTo(HaveOccurred())

		Expect(agg.Suffix()).To(Equal([]string{ChannelMinus, ChannelPlus}))
		for range 3 {
			b, err := agg.DefaultBounds(0, dynamo.Controls)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(dynamo.Bounds{Min: []float64{-2}, Max: []float64{0}}))

			name, err := agg.ChannelName(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal(ChannelMinus))
		}
		b, err := agg.DefaultBounds(1, dynamo.Controls)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(dynamo.Bounds{Min: []float64{0}, Max: []float64{3}}))
	})

	It("rejects channel indices past the channel count", func() {
		agg, err := NewTauSplit(minus(), plus(), false, true)
		Expect(err).NotTo(HaveOccurred())

		_, err = agg.DefaultBounds(2, dynamo.States)
		Expect(errors.Is(err, dynamo.ErrChannelIndex)).To(BeTrue())
		_, err = agg.DefaultInitialGuess(-1, dynamo.States)
		Expect(errors.Is(err, dynamo.ErrChannelIndex)).To(BeTrue())
	})

	It("needs one model per named channel", func() {
		_, err := NewTauSplit(minus(), nil, false, false)
		Expect(errors.Is(err, dynamo.ErrIncompatibleModel)).To(BeTrue())
	})

	It("names unnamed channels by position", func() {
		agg, err := NewStack(FamilyTau, true, NewXia(1, 1, 1, 1, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(agg.Add(NewEffort(0.2, 1, 1))).To(Succeed())

		Expect(agg.Suffix()).To(Equal([]string{"0", "1"}))
		m, err := agg.Model(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Type()).To(Equal("effort"))
		Expect(agg.Channel("1").StateKey("effort")).To(Equal("tau_1_effort"))
	})

	It("refuses extra models on named channels", func() {
		agg, err := NewInterface(FamilyTau, NewXia(1, 1, 1, 1, 1), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(errors.Is(agg.Add(NewEffort(0.2, 1, 1)), dynamo.ErrIncompatibleModel)).To(BeTrue())
	})

	It("drives each split channel from its own control", func() {
		agg, err := NewTauSplit(minus(), plus(), false, true)
		Expect(err).NotTo(HaveOccurred())
		reg := NewRegistry()
		Expect(reg.AddAggregator(agg, 0)).To(Succeed())
		phase := phaseFor(reg, physics.NewPendulum())

		Expect(phase.Controls.Blocks()).To(Equal([]nlp.Block{{Name: "tau_minus", Size: 1}, {Name: "tau_plus", Size: 1}}))

		env := expr.Env{}
		// q, qdot, minus ma/mr/mf, plus ma/mr/mf
		bind(env, phase.SymX, 0, 0, 0, 1, 0, 0, 1, 0)
		bind(env, phase.SymU, -1, 0)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[2]).To(BeNumerically("~", 10*0.5, 1e-12))
		Expect(got[5]).To(BeNumerically("~", 0, 1e-12))
	})

	It("splits a signed control when controls are shared", func() {
		agg, err := NewTauSplit(minus(), plus(), false, false)
		Expect(err).NotTo(HaveOccurred())
		reg := NewRegistry()
		Expect(reg.AddAggregator(agg, 0)).To(Succeed())
		phase := phaseFor(reg, physics.NewPendulum())

		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0, 1, 0, 0, 1, 0)
		bind(env, phase.SymU, 1.5)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[2]).To(BeNumerically("~", 0, 1e-12))
		Expect(got[5]).To(BeNumerically("~", 10*0.5, 1e-12))
	})
})

var _ = Describe("Registry", func() {
	It("rejects a second aggregator in the same slot", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), 0, false)).To(Succeed())
		err := reg.Add(NewXia(2, 2, 2, 2, 2), 0, false)
		Expect(errors.Is(err, dynamo.ErrDuplicateRegistration)).To(BeTrue())
	})

	It("appends to the next slot for a negative index", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), -1, false)).To(Succeed())
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), -1, false)).To(Succeed())
		l, ok := reg.Get(FamilyTau)
		Expect(ok).To(BeTrue())
		Expect(l.Len()).To(Equal(2))
	})

	It("rejects bare models whose aggregator needs a pair", func() {
		reg := NewRegistry()
		err := reg.Add(NewXia(1, 1, 1, 1, 1).WithMultiType(TauSplitType), 0, false)
		Expect(errors.Is(err, dynamo.ErrIncompatibleModel)).To(BeTrue())
		Expect(reg.Empty()).To(BeTrue())
	})

	It("rejects models that lay out states differently within a family", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), 0, false)).To(Succeed())
		err := reg.Add(NewEffort(0.2, 1, 1), 1, false)
		Expect(errors.Is(err, dynamo.ErrIncompatibleModel)).To(BeTrue())
	})

	It("reports empty slots", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), 1, false)).To(Succeed())
		Expect(errors.Is(reg.Validate(), dynamo.ErrInvalidParameter)).To(BeTrue())
	})

	It("leaves the derivative alone for an unknown family", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), 0, false)).To(Succeed())
		phase := phaseFor(reg, physics.NewPendulum())
		states, _ := phase.StateVariables(phase.SymX)
		controls, _ := phase.ControlVariables(phase.SymU)

		dxdt := expr.Syms("d", phase.NX())
		out, err := reg.DynamicsFor("muscles", dxdt, phase, states, controls)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(dxdt))
	})

	It("folds every slot of a family", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewEffort(0.2, 2, 1), -1, true)).To(Succeed())
		Expect(reg.Add(NewEffort(0.2, 2, 1), -1, true)).To(Succeed())
		phase := phaseFor(reg, physics.NewDoublePendulum())

		Expect(phase.States.Blocks()[2]).To(Equal(nlp.Block{Name: "tau_effort", Size: 2}))

		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0, 0, 0.5, 0.5)
		bind(env, phase.SymU, 0.6, 0.1)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[4]).To(BeNumerically("~", 2*(0.6-0.2)/0.8*0.5, 1e-12))
		Expect(got[5]).To(BeNumerically("~", -2*0.5, 1e-12))
	})

	It("resolves default bounds and guesses slot by slot", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), -1, false)).To(Succeed())
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), -1, false)).To(Succeed())

		d, err := reg.StateDefaults()
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Bounds["tau_ma"]).To(Equal(dynamo.Bounds{Min: []float64{0, 0}, Max: []float64{1, 1}}))
		Expect(d.Guess["tau_mr"]).To(Equal([]float64{1, 1}))
		Expect(d.Guess["tau_mf"]).To(Equal([]float64{0, 0}))

		c, err := reg.ControlDefaults()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Bounds).To(BeEmpty())
	})

	It("names split control blocks and their defaults", func() {
		reg := NewRegistry()
		agg, err := NewTauSplit(NewXia(1, 1, 1, 1, -4), NewXia(1, 1, 1, 1, 5), false, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.AddAggregator(agg, 0)).To(Succeed())

		Expect(reg.ControlBlocks()).To(Equal([]nlp.Block{{Name: "tau_minus", Size: 1}, {Name: "tau_plus", Size: 1}}))
		c, err := reg.ControlDefaults()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Bounds["tau_minus"]).To(Equal(dynamo.Bounds{Min: []float64{-4}, Max: []float64{0}}))
		Expect(c.Bounds["tau_plus"]).To(Equal(dynamo.Bounds{Min: []float64{0}, Max: []float64{5}}))
	})

	DescribeTable("effective controls",
		func(stateOnly bool, want float64) {
			reg := NewRegistry()
			agg, err := NewTauSplit(NewXia(1, 1, 1, 1, -4), NewXia(1, 1, 1, 1, 5), stateOnly, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.AddAggregator(agg, 0)).To(Succeed())
			phase := phaseFor(reg, physics.NewPendulum())
			states, _ := phase.StateVariables(phase.SymX)
			controls, _ := phase.ControlVariables(phase.SymU)

			commanded, err := reg.CommandedControls(FamilyTau, controls)
			Expect(err).NotTo(HaveOccurred())
			eff, err := reg.EffectiveControls(FamilyTau, commanded, states)
			Expect(err).NotTo(HaveOccurred())

			env := expr.Env{}
			bind(env, phase.SymX, 0, 0, 0.25, 0.75, 0, 0.5, 0.5, 0)
			bind(env, phase.SymU, -3, 1)
			got, err := eff.Eval(env)
			Expect(err).NotTo(HaveOccurred())
			Expect(got[0]).To(BeNumerically("~", want, 1e-12))
		},
		Entry("fatigue limits the torque", false, -4*0.25+5*0.5),
		Entry("state-only keeps the commanded torque", true, -3.0+1),
	)

	It("folds families in the order they were first declared", func() {
		reg := NewRegistry()
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), -1, false)).To(Succeed())
		muscles, err := NewStack("muscles", true, NewEffort(0.2, 2, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.AddAggregator(muscles, -1)).To(Succeed())

		Expect(reg.Families()).To(Equal([]string{FamilyTau, "muscles"}))
		var names []string
		for _, b := range reg.StateBlocks() {
			names = append(names, b.Name)
		}
		Expect(names).To(Equal([]string{"tau_ma", "tau_mr", "tau_mf", "muscles_0_effort"}))

		model := physics.NewPendulum()
		states, err := nlp.StateLayout(model.NbQ(), reg.StateBlocks()...)
		Expect(err).NotTo(HaveOccurred())
		controls, err := nlp.NewLayout(nlp.Block{Name: nlp.BlockTau, Size: 1}, nlp.Block{Name: "muscles", Size: 1})
		Expect(err).NotTo(HaveOccurred())
		phase, err := nlp.NewPhase(0, nlp.PhaseSpec{Model: model, NShooting: 4, FinalTime: 1, States: states, Controls: controls})
		Expect(err).NotTo(HaveOccurred())

		env := expr.Env{}
		bind(env, phase.SymX, 0, 0, 0, 1, 0, 0.5)
		bind(env, phase.SymU, 0.5, 0.6)

		got, err := rhs(reg, phase).Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got[2]).To(BeNumerically("~", 0.5, 1e-12))
		Expect(got[3]).To(BeNumerically("~", -0.5, 1e-12))
		Expect(got[5]).To(BeNumerically("~", 2*(0.6-0.2)/0.8*0.5, 1e-12))

		sv, _ := phase.StateVariables(phase.SymX)
		cv, _ := phase.ControlVariables(phase.SymU)
		step := expr.Zeros(phase.NX())
		for _, f := range reg.Families() {
			step, err = reg.DynamicsFor(f, step, phase, sv, cv)
			Expect(err).NotTo(HaveOccurred())
		}
		want, err := step.Eval(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("keeps declaration order when the later family sorts first", func() {
		reg := NewRegistry()
		muscles, err := NewStack("muscles", true, NewEffort(0.2, 2, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.AddAggregator(muscles, -1)).To(Succeed())
		Expect(reg.Add(NewXia(1, 1, 1, 1, 1), -1, false)).To(Succeed())

		Expect(reg.Families()).To(Equal([]string{"muscles", FamilyTau}))
		Expect(reg.StateBlocks()[0].Name).To(Equal("muscles_0_effort"))
	})

	DescribeTable("rejects invalid model parameters",
		func(m Model, field string) {
			err := NewRegistry().Add(m, 0, false)
			Expect(errors.Is(err, dynamo.ErrInvalidParameter)).To(BeTrue())
			var cfg *dynamo.ConfigError
			Expect(errors.As(err, &cfg)).To(BeTrue())
			Expect(cfg.Subject).To(Equal(field))
		},
		Entry("xia without scaling", &Xia{LD: 10, LR: 10, F: 0.01, R: 0.002}, "xia.scaling"),
		Entry("xia negative ld", NewXia(-1, 10, 0.01, 0.002, 1), "xia.ld"),
		Entry("xia negative lr", NewXia(10, -1, 0.01, 0.002, 1), "xia.lr"),
		Entry("xia negative f", NewXia(10, 10, -0.01, 0.002, 1), "xia.f"),
		Entry("xia negative r", NewXia(10, 10, 0.01, -0.002, 1), "xia.r"),
		Entry("xia NaN f", NewXia(10, 10, math.NaN(), 0.002, 1), "xia.f"),
		Entry("xia infinite scaling", NewXia(10, 10, 0.01, 0.002, math.Inf(1)), "xia.scaling"),
		Entry("effort threshold of one", NewEffort(1, 1, 10), "effort.threshold"),
		Entry("effort threshold above one", NewEffort(1.5, 1, 10), "effort.threshold"),
		Entry("effort negative threshold", NewEffort(-0.1, 1, 10), "effort.threshold"),
		Entry("effort NaN threshold", NewEffort(math.NaN(), 1, 10), "effort.threshold"),
		Entry("effort negative factor", NewEffort(0.2, -1, 10), "effort.factor"),
		Entry("effort without scaling", NewEffort(0.2, 1, 0), "effort.scaling"),
	)

	It("validates every channel of an aggregator", func() {
		agg, err := NewTauSplit(NewXia(1, 1, 1, 1, -4), NewXia(1, 1, 1, 1, 0), false, true)
		Expect(err).NotTo(HaveOccurred())
		reg := NewRegistry()
		err = reg.AddAggregator(agg, 0)
		Expect(errors.Is(err, dynamo.ErrInvalidParameter)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("channel plus"))
		Expect(reg.Empty()).To(BeTrue())
	})
})
