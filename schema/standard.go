/*
fixcodec — FIX protocol codec
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/
package schema

// StandardFields returns the envelope fields every FIX 4.x dictionary
// declares.
func StandardFields() []FieldDef {
	return []FieldDef{
		{Tag: 8, Name: "BeginString", Type: "STRING"},
		{Tag: 9, Name: "BodyLength", Type: "LENGTH"},
		{Tag: 10, Name: "CheckSum", Type: "STRING"},
		{Tag: 34, Name: "MsgSeqNum", Type: "SEQNUM"},
		{Tag: 35, Name: "MsgType", Type: "STRING"},
		{Tag: 43, Name: "PossDupFlag", Type: "BOOLEAN"},
		{Tag: 49, Name: "SenderCompID", Type: "STRING"},
		{Tag: 50, Name: "SenderSubID", Type: "STRING"},
		{Tag: 52, Name: "SendingTime", Type: "UTCTIMESTAMP"},
		{Tag: 56, Name: "TargetCompID", Type: "STRING"},
		{Tag: 57, Name: "TargetSubID", Type: "STRING"},
		{Tag: 89, Name: "Signature", Type: "DATA"},
		{Tag: 93, Name: "SignatureLength", Type: "LENGTH"},
		{Tag: 97, Name: "PossResend", Type: "BOOLEAN"},
		{Tag: 115, Name: "OnBehalfOfCompID", Type: "STRING"},
		{Tag: 122, Name: "OrigSendingTime", Type: "UTCTIMESTAMP"},
		{Tag: 128, Name: "DeliverToCompID", Type: "STRING"},
	}
}

// StandardHeader is the FIX 4.x standard header.
func StandardHeader() []Part {
	return []Part{
		FieldPart("BeginString", true),
		FieldPart("BodyLength", true),
		FieldPart("MsgType", true),
		FieldPart("SenderCompID", true),
		FieldPart("TargetCompID", true),
		FieldPart("OnBehalfOfCompID", false),
		FieldPart("DeliverToCompID", false),
		FieldPart("SenderSubID", false),
		FieldPart("TargetSubID", false),
		FieldPart("MsgSeqNum", true),
		FieldPart("PossDupFlag", false),
		FieldPart("PossResend", false),
		FieldPart("SendingTime", true),
		FieldPart("OrigSendingTime", false),
	}
}

// StandardTrailer is the FIX 4.x standard trailer.
func StandardTrailer() []Part {
	return []Part{
		FieldPart("SignatureLength", false),
		FieldPart("Signature", false),
		FieldPart("CheckSum", true),
	}
}
