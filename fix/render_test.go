package fix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendField(t *testing.T) {
	tests := []struct {
		tag  int
		v    Value
		want string
	}{
		{34, Int(7), "34=7\x01"},
		{44, DecimalValue(MustDecimal("12.340")), "44=12.340\x01"},
		{55, String("IBM"), "55=IBM\x01"},
		{54, Char('1'), "54=1\x01"},
		{43, Bool(true), "43=Y\x01"},
		{43, Bool(false), "43=N\x01"},
		{272, Date(time.Date(2025, time.March, 14, 23, 0, 0, 0, time.UTC)), "272=20250314\x01"},
		{96, Data([]byte("a\x01b")), "96=a\x01b\x01"},
	}

	for _, tt := range tests {
		got, err := AppendField(nil, tt.tag, tt.v)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestAppendFieldFailureLeavesDst(t *testing.T) {
	dst := []byte("1=a\x01")
	for _, v := range []Value{{}, String(""), String("a\x01"), Char(SOH)} {
		got, err := AppendField(dst, 58, v)
		assert.Error(t, err)
		assert.Equal(t, "1=a\x01", string(got))
	}
}

func TestTimestampTruncates(t *testing.T) {
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 589_123_456, time.UTC)

	tests := map[Precision]string{
		PrecisionSeconds: "20250314-09:26:53",
		PrecisionMillis:  "20250314-09:26:53.589",
		PrecisionMicros:  "20250314-09:26:53.589123",
		PrecisionNanos:   "20250314-09:26:53.589123456",
	}
	for p, want := range tests {
		assert.Equal(t, want, Timestamp(ts, p).String())
	}
}

func TestTimesRenderInUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2025, time.March, 15, 1, 30, 0, 0, zone)

	assert.Equal(t, "20250314-23:30:00", Timestamp(local, PrecisionSeconds).String())
	assert.Equal(t, "23:30:00.000", TimeOfDay(local, PrecisionMillis).String())
	assert.Equal(t, "20250314", Date(local).String())
}

func TestValueEqual(t *testing.T) {
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

	assert.True(t, Int(1).Equal(Int(1)))
	assert.False(t, Int(1).Equal(Char(1)))
	assert.False(t, String("1").Equal(Int(1)))
	assert.True(t, Timestamp(ts, PrecisionMillis).Equal(Timestamp(ts, PrecisionMillis)))
	assert.False(t, Timestamp(ts, PrecisionMillis).Equal(Timestamp(ts, PrecisionSeconds)))
	assert.True(t, Data([]byte("x")).Equal(Data([]byte("x"))))
	assert.False(t, DecimalValue(MustDecimal("1.0")).Equal(DecimalValue(MustDecimal("1"))))
	assert.False(t, Value{}.IsValid())
}

func TestNewDecimal(t *testing.T) {
	d, err := NewDecimal(decimal.RequireFromString("1.2"), 3)
	require.NoError(t, err)
	assert.Equal(t, "1.200", d.String())

	_, err = NewDecimal(decimal.RequireFromString("1.25"), 1)
	assert.Error(t, err)

	_, err = NewDecimal(decimal.RequireFromString("1"), -1)
	assert.Error(t, err)

	assert.Panics(t, func() { MustDecimal("1e5") })
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Int(-1).Validate())
	assert.Error(t, String("").Validate())
	assert.Error(t, Timestamp(time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC), PrecisionSeconds).Validate())
	assert.Error(t, DecimalValue(Decimal{Value: decimal.RequireFromString("1.25"), Scale: 1}).Validate())
	assert.Error(t, Value{}.Validate())
}

func TestChecksum(t *testing.T) {
	msg := []byte("8=FIX.4.4\x019=5\x0135=0\x01")
	assert.Equal(t, 163, Checksum(msg))
	assert.Equal(t, 0, Checksum(nil))

	assert.Equal(t, "007", string(AppendChecksum(nil, 7)))
	assert.Equal(t, "163", string(AppendChecksum(nil, 163)))
	assert.Equal(t, "000", string(AppendChecksum(nil, 256)))
}

func TestIsDerived(t *testing.T) {
	assert.True(t, IsDerived(TagBodyLength))
	assert.True(t, IsDerived(TagCheckSum))
	assert.False(t, IsDerived(TagMsgType))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "TIMESTAMP", KindTimestamp.String())
	assert.Equal(t, "INVALID", KindInvalid.String())
	assert.Equal(t, "INVALID", Kind(200).String())
	assert.Equal(t, 6, PrecisionMicros.Digits())
}
