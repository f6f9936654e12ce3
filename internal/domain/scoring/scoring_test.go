package scoring_test

import (
	"errors"
	"testing"

	scoring "github.com/okian/xpand/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCalculator_Score(t *testing.T) {
	Convey("Given a calculator with default weights", t, func() {
		calc, err := scoring.NewCalculator(scoring.DefaultWeights())
		So(err, ShouldBeNil)

		Convey("When the vendor overlaps two services, rates 4 and answers within 12h", func() {
			score := calc.Score(scoring.Input{ServicesOverlap: 2, Rating: 4, ResponseSLAHours: 12})

			Convey("Then the score is 2*2 + 4 + 1", func() {
				So(score, ShouldEqual, 9.0)
			})
		})

		Convey("When the vendor SLA equals the threshold", func() {
			score := calc.Score(scoring.Input{ServicesOverlap: 1, Rating: 3, ResponseSLAHours: 24})

			Convey("Then the SLA bonus still applies", func() {
				So(score, ShouldEqual, 6.0)
			})
		})

		Convey("When the vendor SLA is above the threshold", func() {
			b := calc.Breakdown(scoring.Input{ServicesOverlap: 1, Rating: 5, ResponseSLAHours: 36})

			Convey("Then no SLA bonus is granted", func() {
				So(b.MeetsSLA, ShouldBeFalse)
				So(b.SLABonus, ShouldEqual, 0)
				So(b.Total, ShouldEqual, 7.0)
			})
		})
	})

	Convey("Given fractional weights", t, func() {
		calc, err := scoring.NewCalculator(scoring.Weights{
			ServiceWeight:     1.333,
			SLAWeight:         0.555,
			SLAThresholdHours: 48,
		})
		So(err, ShouldBeNil)

		Convey("When scoring", func() {
			b := calc.Breakdown(scoring.Input{ServicesOverlap: 3, Rating: 2, ResponseSLAHours: 48})

			Convey("Then the total is rounded to two decimals", func() {
				// 3.999 + 2 + 0.555 = 6.554
				So(b.Total, ShouldEqual, 6.55)
				So(b.ServiceTerm, ShouldAlmostEqual, 3.999, 1e-9)
			})
		})
	})
}

func TestCalculator_Deterministic(t *testing.T) {
	Convey("Given the same input scored many times", t, func() {
		calc, _ := scoring.NewCalculator(scoring.DefaultWeights())
		in := scoring.Input{ServicesOverlap: 3, Rating: 1, ResponseSLAHours: 6}
		first := calc.Score(in)

		Convey("Then every score is identical", func() {
			for i := 0; i < 100; i++ {
				So(calc.Score(in), ShouldEqual, first)
			}
		})
	})
}

func TestNewCalculator_InvalidWeights(t *testing.T) {
	Convey("Given negative weights", t, func() {
		cases := []scoring.Weights{
			{ServiceWeight: -1, SLAWeight: 1, SLAThresholdHours: 24},
			{ServiceWeight: 2, SLAWeight: -0.5, SLAThresholdHours: 24},
			{ServiceWeight: 2, SLAWeight: 1, SLAThresholdHours: -1},
		}

		Convey("Then construction fails with ErrInvalidWeights", func() {
			for _, w := range cases {
				calc, err := scoring.NewCalculator(w)
				So(calc, ShouldBeNil)
				So(errors.Is(err, scoring.ErrInvalidWeights), ShouldBeTrue)
			}
		})
	})
}

func TestRoundingHelpers(t *testing.T) {
	Convey("Given scores that differ below persisted precision", t, func() {
		So(scoring.Equal(8.8, 8.8000001), ShouldBeTrue)
		So(scoring.Equal(8.8, 8.81), ShouldBeFalse)
		So(scoring.Round2(7.005), ShouldEqual, 7.01)
		So(scoring.Round2(9), ShouldEqual, 9.0)
	})
}
