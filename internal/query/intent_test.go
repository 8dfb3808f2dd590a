package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     Intent
	}{
		{"how many companies are registered?", Intent{Kind: KindOverview, Term: "how many companies are registered?"}},
		{"registration trend in 2023", Intent{Kind: KindTrend, Term: "registration trend in 2023", FromMonth: 202301, ToMonth: 202312}},
		{"monthly registrations", Intent{Kind: KindTrend, Term: "monthly registrations"}},
		{"top planning areas", Intent{Kind: KindRanking, Dimension: RankByPlanningArea, Term: "top planning areas"}},
		{"most popular subzone", Intent{Kind: KindRanking, Dimension: RankBySubzone, Term: "most popular subzone"}},
		{"top industries", Intent{Kind: KindRanking, Dimension: RankBySSIC, Term: "top industries"}},
		{"acme holdings", Intent{Kind: KindSearch, Term: "acme holdings"}},
		{"details for 201912345A", Intent{Kind: KindSearch, Term: "201912345A"}},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.question))
		})
	}
}

func TestClassify_TrendWithoutYearUnbounded(t *testing.T) {
	intent := Classify("growth over time")
	assert.Equal(t, KindTrend, intent.Kind)
	assert.Zero(t, intent.FromMonth)
	assert.Zero(t, intent.ToMonth)
}
